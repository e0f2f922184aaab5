package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/http/response"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		response.Error(w, r, apierr.ErrInternal.WithMessage("database unavailable"))
		return
	}
	response.OK(w, map[string]bool{"ok": true})
}

// HandlePing handles GET /healthCheck.ping
func (h *HealthHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "pong")
}
