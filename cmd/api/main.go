package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/dailydrop/server/internal/auth"
	"github.com/dailydrop/server/internal/chat"
	"github.com/dailydrop/server/internal/config"
	"github.com/dailydrop/server/internal/db"
	httphandler "github.com/dailydrop/server/internal/http"
	"github.com/dailydrop/server/internal/http/handlers"
	"github.com/dailydrop/server/internal/mail"
	"github.com/dailydrop/server/internal/middleware"
	"github.com/dailydrop/server/internal/notification"
	"github.com/dailydrop/server/internal/push"
	"github.com/dailydrop/server/internal/repo"
	"github.com/dailydrop/server/internal/storage"
	"github.com/dailydrop/server/internal/users"
)

const authRequestsPerWindow = 20

func main() {
	// real environment variables win over .env
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}

	// Initialize repositories
	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOtpRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	subscriptionRepo := repo.NewSubscriptionRepo(database)
	chatRepo := repo.NewChatRepo(database)
	notificationRepo := repo.NewNotificationRepo(database)

	// Initialize services
	jwtService, err := auth.NewJWTService(cfg.PublicKey, cfg.PrivateKey, cfg.TokenTTL)
	if err != nil {
		return err
	}
	mailer := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	otpService := auth.NewOTPService(userRepo, otpRepo, mailer, cfg.OTPCooldown, logger)
	authService := auth.NewAuthService(jwtService, userRepo)
	gate := auth.NewGate(jwtService, userRepo, logger)

	notificationService := notification.NewService(notificationRepo, userRepo,
		push.NewExpoSender(cfg.ExpoPushURL, cfg.ExpoAccessToken), logger)
	userService := users.NewService(userRepo, deviceRepo, subscriptionRepo, notificationService, logger)
	broadcaster := chat.NewBroadcaster()
	chatService := chat.NewService(chatRepo, userRepo, broadcaster, logger)

	uploader, err := storage.NewS3Uploader(ctx, cfg.AWSRegion, cfg.AWSBucketName, cfg.StorageDomain)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newAuthLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	router := httphandler.NewRouter(httphandler.Handlers{
		Auth:          handlers.NewAuthHandler(otpService, authService),
		Users:         handlers.NewUserHandler(userService),
		Chats:         handlers.NewChatHandler(chatService),
		ChatStream:    handlers.NewChatStreamHandler(broadcaster, cfg.AllowedOrigins, logger),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Storage:       handlers.NewStorageHandler(uploader),
		Health:        handlers.NewHealthHandler(database),
	}, httphandler.RouterConfig{
		Resolver:       gate,
		AuthLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	// WriteTimeout is left unset: chat streams hold the connection open
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	otpService.Wait()

	logger.Info("server exited")
	return nil
}

// newAuthLimiter shares the auth route budget through Redis when REDIS_URL is
// set and keeps it in memory otherwise.
func newAuthLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (middleware.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		rl := middleware.NewRateLimiter(httphandler.AuthRateWindow, authRequestsPerWindow)
		go rl.Cleanup(ctx, time.Hour)
		return rl, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("rate limiter using redis", slog.String("addr", opts.Addr))
	return middleware.NewRedisLimiter(client, "auth", httphandler.AuthRateWindow, authRequestsPerWindow),
		func() { _ = client.Close() }, nil
}
