package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPairLoads(t *testing.T) {
	pub, priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	svc, err := NewJWTService(pub, priv, time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	token, err := svc.Issue(id, 2)
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, 2, claims.PasswordChangeCounter)
}
