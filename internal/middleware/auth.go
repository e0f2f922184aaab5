package middleware

import (
	"context"
	"net/http"

	"github.com/dailydrop/server/internal/http/response"
	"github.com/dailydrop/server/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// Resolver maps an Authorization header to a user, or nil
type Resolver interface {
	Resolve(ctx context.Context, header string) *model.User
}

// Identify attaches the caller to the request context when the Authorization
// header resolves to a user. It never rejects a request.
func Identify(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if user := resolver.Resolve(r.Context(), header); user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that Identify could not attach a user to
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			response.Unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns ctx carrying user
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the user attached to the request context
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
