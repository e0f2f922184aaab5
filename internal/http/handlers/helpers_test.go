package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dailydrop/server/internal/auth"
	"github.com/dailydrop/server/internal/chat"
	"github.com/dailydrop/server/internal/mail"
	"github.com/dailydrop/server/internal/middleware"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/notification"
	"github.com/dailydrop/server/internal/push"
	"github.com/dailydrop/server/internal/repo/memstore"
	"github.com/dailydrop/server/internal/users"
)

const testPassword = "Secret1!pass"

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey() *rsa.PrivateKey {
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, mail.Message) error { return nil }

type nopPusher struct{}

func (nopPusher) Send(context.Context, []string, push.Notification) error { return nil }

type testEnv struct {
	store       *memstore.Store
	jwt         *auth.JWTService
	gate        *auth.Gate
	otp         *auth.OTPService
	broadcaster *chat.Broadcaster

	auth          *AuthHandler
	users         *UserHandler
	chats         *ChatHandler
	notifications *NotificationHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	k := rsaKey()
	jwt := auth.NewJWTServiceFromKey(k, &k.PublicKey, time.Hour)
	otp := auth.NewOTPService(store.Users(), store.OTPs(), nopMailer{}, time.Minute, logger)
	t.Cleanup(otp.Wait)

	notifications := notification.NewService(store.Notifications(), store.Users(), nopPusher{}, logger)
	broadcaster := chat.NewBroadcaster()

	return &testEnv{
		store:         store,
		jwt:           jwt,
		gate:          auth.NewGate(jwt, store.Users(), logger),
		otp:           otp,
		broadcaster:   broadcaster,
		auth:          NewAuthHandler(otp, auth.NewAuthService(jwt, store.Users())),
		users:         NewUserHandler(users.NewService(store.Users(), store.Devices(), store.Subscriptions(), notifications, logger)),
		chats:         NewChatHandler(chat.NewService(store.Chats(), store.Users(), broadcaster, logger)),
		notifications: NewNotificationHandler(notifications),
	}
}

func (e *testEnv) seedUser(t *testing.T, email string, role model.Role, counter int) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	return e.store.PutUser(model.User{
		Email:                 email,
		PasswordHash:          hash,
		PasswordChangeCounter: counter,
		Role:                  role,
		FullName:              email,
		Phone:                 email,
	})
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call runs h with an optional JSON body and caller
func call(t *testing.T, h http.HandlerFunc, method, target string, body any, user *model.User) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	h(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}
