// Package handlers implements the HTTP endpoints of the API. Queries read
// their input from the query string and mutations from a JSON body.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/middleware"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/validate"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and validates it
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return apierr.ErrBadRequest.WithMessage("invalid request body")
	}
	return validate.Struct(dst)
}

// queryUUID parses a required uuid query parameter
func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return uuid.Nil, apierr.ErrBadRequest.Withf("%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierr.ErrBadRequest.Withf("%s must be a valid id", name)
	}
	return id, nil
}

// optionalUUID is queryUUID that maps an absent parameter to uuid.Nil
func optionalUUID(r *http.Request, name string) (uuid.UUID, error) {
	if strings.TrimSpace(r.URL.Query().Get(name)) == "" {
		return uuid.Nil, nil
	}
	return queryUUID(r, name)
}

// currentUser is only called behind RequireUser
func currentUser(r *http.Request) *model.User {
	u, _ := middleware.GetUser(r.Context())
	return u
}
