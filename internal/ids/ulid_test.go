package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorSameMillisecondIsOrdered(t *testing.T) {
	g := NewGenerator()
	now := time.Now()

	prev := g.New(now)
	for i := 0; i < 100; i++ {
		next := g.New(now)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestGeneratorEncodesTime(t *testing.T) {
	g := NewGenerator()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := ulid.Parse(g.New(at))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), id.Time())
}
