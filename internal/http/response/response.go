// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dailydrop/server/internal/apierr"
)

// Envelope is the body of every API response.
type Envelope struct {
	Data  any           `json:"data"`
	Error *apierr.Error `json:"error,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{Data: data}); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Error writes err as an error envelope. Errors that are not *apierr.Error
// are logged and reported as INTERNAL without their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.As(err)
	if apiErr == apierr.ErrInternal {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_ = json.NewEncoder(w).Encode(Envelope{Error: apiErr})
}

// BadRequest writes a BAD_REQUEST error with message.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, apierr.ErrBadRequest.WithMessage(message))
}

// Unauthorized writes the UNAUTHORIZED error.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	Error(w, r, apierr.ErrUnauthorized)
}
