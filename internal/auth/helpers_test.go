package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dailydrop/server/internal/mail"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo/memstore"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func newTestJWT(t *testing.T, ttl time.Duration) *JWTService {
	k := rsaKey(t)
	return NewJWTServiceFromKey(k, &k.PublicKey, ttl)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

const testPassword = "Secret1!pass"

func seedUser(t *testing.T, store *memstore.Store, email string, counter int) *model.User {
	t.Helper()
	hash, err := HashPassword(testPassword)
	require.NoError(t, err)
	return store.PutUser(model.User{
		Email:                 email,
		PasswordHash:          hash,
		PasswordChangeCounter: counter,
		Role:                  model.RoleCustomer,
		FullName:              "Jane Doe",
		Phone:                 email,
	})
}
