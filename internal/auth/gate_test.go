package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailydrop/server/internal/repo/memstore"
)

func TestGateResolve(t *testing.T) {
	store := memstore.New()
	user := seedUser(t, store, "jane@example.com", 4)
	jwtSvc := newTestJWT(t, time.Hour)
	gate := NewGate(jwtSvc, store.Users(), discardLogger())
	ctx := context.Background()

	valid, err := jwtSvc.Issue(user.ID, 4)
	require.NoError(t, err)
	stale, err := jwtSvc.Issue(user.ID, 3)
	require.NoError(t, err)
	ghost, err := jwtSvc.Issue(uuid.New(), 0)
	require.NoError(t, err)

	got := gate.Resolve(ctx, "Bearer "+valid)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.NotNil(t, gate.Resolve(ctx, "bearer "+valid), "scheme is case-insensitive")

	for name, header := range map[string]string{
		"empty":          "",
		"no token":       "Bearer",
		"wrong scheme":   "Basic " + valid,
		"bare token":     valid,
		"garbage":        "Bearer garbage",
		"stale counter":  "Bearer " + stale,
		"unknown user":   "Bearer " + ghost,
		"blank after it": "Bearer    ",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, gate.Resolve(ctx, header))
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  BEARER   abc "))
	assert.Equal(t, "", bearerToken("Token abc"))
	assert.Equal(t, "", bearerToken("abc"))
}
