package http

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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailydrop/server/internal/auth"
	"github.com/dailydrop/server/internal/chat"
	"github.com/dailydrop/server/internal/http/handlers"
	"github.com/dailydrop/server/internal/mail"
	"github.com/dailydrop/server/internal/middleware"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/notification"
	"github.com/dailydrop/server/internal/push"
	"github.com/dailydrop/server/internal/repo/memstore"
	"github.com/dailydrop/server/internal/storage"
	"github.com/dailydrop/server/internal/users"
)

type nopMailer struct{}

func (nopMailer) Send(context.Context, mail.Message) error { return nil }

type nopPusher struct{}

func (nopPusher) Send(context.Context, []string, push.Notification) error { return nil }

type nopUploader struct{}

func (nopUploader) SignedUploadURL(context.Context, string, string) (*storage.Upload, error) {
	return &storage.Upload{}, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type server struct {
	store *memstore.Store
	jwt   *auth.JWTService
	mux   http.Handler
}

func newServer(t *testing.T, authLimit int) *server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	store := memstore.New()
	jwt := auth.NewJWTServiceFromKey(key, &key.PublicKey, time.Hour)
	otp := auth.NewOTPService(store.Users(), store.OTPs(), nopMailer{}, time.Minute, logger)
	t.Cleanup(otp.Wait)
	notifications := notification.NewService(store.Notifications(), store.Users(), nopPusher{}, logger)
	broadcaster := chat.NewBroadcaster()

	h := Handlers{
		Auth:          handlers.NewAuthHandler(otp, auth.NewAuthService(jwt, store.Users())),
		Users:         handlers.NewUserHandler(users.NewService(store.Users(), store.Devices(), store.Subscriptions(), notifications, logger)),
		Chats:         handlers.NewChatHandler(chat.NewService(store.Chats(), store.Users(), broadcaster, logger)),
		ChatStream:    handlers.NewChatStreamHandler(broadcaster, []string{"*"}, logger),
		Notifications: handlers.NewNotificationHandler(notifications),
		Storage:       handlers.NewStorageHandler(nopUploader{}),
		Health:        handlers.NewHealthHandler(okPinger{}),
	}
	mux := NewRouter(h, RouterConfig{
		Resolver:       auth.NewGate(jwt, store.Users(), logger),
		AuthLimiter:    middleware.NewRateLimiter(AuthRateWindow, authLimit),
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	})
	return &server{store: store, jwt: jwt, mux: mux}
}

func (s *server) do(method, target, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(t *testing.T, role model.Role) (*model.User, string) {
	t.Helper()
	u := s.store.PutUser(model.User{Email: string(role) + "@example.com", Phone: string(role), Role: role, PasswordChangeCounter: 1})
	token, err := s.jwt.Issue(u.ID, u.PasswordChangeCounter)
	require.NoError(t, err)
	return u, token
}

func TestProtectedRoutesRequireUser(t *testing.T) {
	s := newServer(t, 10)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/chat.list"},
		{http.MethodPost, "/chat.create"},
		{http.MethodGet, "/user.list"},
		{http.MethodGet, "/notification.list"},
		{http.MethodPost, "/s3.getSignedUrl"},
	} {
		rec := s.do(route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)

		rec = s.do(route.method, route.path, "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestPublicRoutes(t *testing.T) {
	s := newServer(t, 10)

	rec := s.do(http.MethodGet, "/healthCheck.ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"pong"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/user.me", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":null}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dailydrop_http_requests_total")
}

func TestTokenResolvesCaller(t *testing.T) {
	s := newServer(t, 10)
	user, token := s.login(t, model.RoleCustomer)

	rec := s.do(http.MethodGet, "/user.me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.ID.String())

	rec = s.do(http.MethodPost, "/chat.create", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaleTokenIsAnonymous(t *testing.T) {
	s := newServer(t, 10)
	user, token := s.login(t, model.RoleCustomer)
	_, err := s.store.Users().UpdatePassword(context.Background(), user.ID, "new-hash")
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/chat.list", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	s := newServer(t, 2)
	body := map[string]string{"email": "nobody@example.com", "password": "x"}

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/user.sendOTPForLogin", "", body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := s.do(http.MethodPost, "/user.login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(http.MethodGet, "/healthCheck.ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "limit applies to auth routes only")
}

func TestAuthRateLimitKeysOnHost(t *testing.T) {
	s := newServer(t, 1)
	body := map[string]string{"email": "nobody@example.com", "password": "x"}

	var codes []int
	for _, addr := range []string{"192.0.2.1:1000", "192.0.2.1:1001", "192.0.2.1:1002"} {
		req := httptest.NewRequest(http.MethodPost, "/user.sendOTPForLogin", strings.NewReader(mustJSON(t, body)))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/user.sendOTPForLogin", strings.NewReader(mustJSON(t, body)))
	req.RemoteAddr = "198.51.100.7:1000"
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other hosts keep their own budget")
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
