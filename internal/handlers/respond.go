// Package handlers holds the HTTP adapters over the escrow ledger and the
// auction engine. Handlers decode requests, take the caller from the bearer
// identity and map core errors to JSON.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auth"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/middleware"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  apperr.Kind `json:"error"`
	Reason string      `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": kind, "reason": reason}. Internal causes
// are logged, never returned.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	kind, reason := apperr.Public(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: kind, Reason: reason})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid JSON: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func caller(r *http.Request) (auth.Identity, error) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok || id.UserID == uuid.Nil {
		return auth.Identity{}, apperr.Unauthorized("authentication required")
	}
	return id, nil
}

// Health serves GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
