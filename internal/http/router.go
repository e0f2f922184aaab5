package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dailydrop/server/internal/http/handlers"
	"github.com/dailydrop/server/internal/middleware"
)

// AuthRateWindow is the window of the per-IP limit on the OTP and login routes
const AuthRateWindow = 10 * time.Minute

// Handlers bundles everything the router serves
type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Chats         *handlers.ChatHandler
	ChatStream    *handlers.ChatStreamHandler
	Notifications *handlers.NotificationHandler
	Storage       *handlers.StorageHandler
	Health        *handlers.HealthHandler
}

// RouterConfig holds the cross-cutting pieces of the router
type RouterConfig struct {
	Resolver       middleware.Resolver
	AuthLimiter    middleware.Limiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Identify(cfg.Resolver))
	r.Use(middleware.Logging(cfg.Logger))

	r.Get("/health", h.Health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/healthCheck.ping", h.Health.HandlePing)
	r.Get("/user.me", h.Users.HandleMe)
	r.Get("/chat.listenToMessage", h.ChatStream.HandleListen)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.AuthLimiter, AuthRateWindow, cfg.Logger))
		r.Post("/user.sendOTPForLogin", h.Auth.HandleSendLoginOTP)
		r.Post("/user.login", h.Auth.HandleLogin)
		r.Post("/user.sendOTPForForgotPassword", h.Auth.HandleSendResetOTP)
		r.Post("/user.resetPassword", h.Auth.HandleResetPassword)
	})

	// Protected routes (require a resolved user)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Post("/user.create", h.Users.HandleCreate)
		r.Get("/user.list", h.Users.HandleList)
		r.Post("/user.assignDriver", h.Users.HandleAssignDriver)
		r.Get("/user.listUnassignedUsers", h.Users.HandleListUnassigned)
		r.Get("/user.getBasicInfo", h.Users.HandleGetBasicInfo)
		r.Post("/user.setNotificationId", h.Users.HandleSetNotificationID)
		r.Post("/user.removeNotificationId", h.Users.HandleRemoveNotificationID)

		r.Post("/chat.create", h.Chats.HandleCreate)
		r.Get("/chat.list", h.Chats.HandleList)
		r.Get("/chat.get", h.Chats.HandleGet)
		r.Post("/chat.sendMessage", h.Chats.HandleSendMessage)

		r.Get("/notification.list", h.Notifications.HandleList)

		r.Post("/s3.getSignedUrl", h.Storage.HandleGetSignedURL)
	})

	return r
}
