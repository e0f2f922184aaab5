package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo"
)

// Gate resolves the caller behind an Authorization header
type Gate struct {
	jwtService *JWTService
	userRepo   repo.UserRepo
	logger     *slog.Logger
}

func NewGate(jwtService *JWTService, userRepo repo.UserRepo, logger *slog.Logger) *Gate {
	return &Gate{jwtService: jwtService, userRepo: userRepo, logger: logger}
}

// Resolve returns the user for a "Bearer <token>" header, or nil when the
// header is absent, malformed, unverifiable or issued before the user's
// last password change.
func (g *Gate) Resolve(ctx context.Context, header string) *model.User {
	token := bearerToken(header)
	if token == "" {
		return nil
	}

	claims, err := g.jwtService.Verify(token)
	if err != nil {
		g.logger.DebugContext(ctx, "token rejected", slog.Any("error", err))
		return nil
	}

	user, err := g.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		g.logger.DebugContext(ctx, "token user lookup failed", slog.Any("error", err))
		return nil
	}
	if user.PasswordChangeCounter != claims.PasswordChangeCounter {
		return nil
	}
	return user
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
