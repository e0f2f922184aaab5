package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	Port        string `env:"PORT" envDefault:"4000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DevMode     bool   `env:"DEV_MODE"`

	// Base64-encoded PEM RSA keys used to sign and verify session tokens
	PublicKey  string        `env:"PUBLIC_KEY,required,notEmpty"`
	PrivateKey string        `env:"PRIVATE_KEY,required,notEmpty"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"8760h"`

	OTPCooldown time.Duration `env:"OTP_COOLDOWN" envDefault:"60s"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"465"`
	SMTPUser     string `env:"GMAIL_EMAIL"`
	SMTPPassword string `env:"GMAIL_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"\"Example\" <example@gmail.com>"`

	ExpoPushURL     string `env:"EXPO_PUSH_URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	ExpoAccessToken string `env:"EXPO_ACCESS_TOKEN"`

	AWSRegion     string `env:"AWS_REGION" envDefault:"ap-south-1"`
	AWSBucketName string `env:"AWS_BUCKET_NAME"`
	StorageDomain string `env:"STORAGE_DOMAIN"`

	// Empty selects the in-memory rate limiter
	RedisURL       string   `env:"REDIS_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := u.Port()
		if port == "" {
			port = "5432"
		}
		slog.Info("db connect",
			slog.String("host", host),
			slog.String("port", port),
			slog.String("db", strings.TrimPrefix(u.Path, "/")),
			slog.String("user", u.User.Username()),
		)
	}

	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
