// ABOUTME: Error kind taxonomy and JSON error responses for the Activity API
// ABOUTME: Maps package sentinel errors to HTTP status and stable error kinds

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greentic/messaging-gateway/internal/auth"
	"github.com/greentic/messaging-gateway/internal/envelope"
	"github.com/greentic/messaging-gateway/internal/ratelimit"
	"github.com/greentic/messaging-gateway/internal/store"
)

// Error kinds returned in the "error" field. Clients branch on these,
// so they are part of the wire contract.
const (
	kindAuthError       = "auth_error"
	kindValidationError = "validation_error"
	kindRateLimitError  = "rate_limit_error"
	kindNotFound        = "not_found"
	kindConfigError     = "config_error"
	kindInternal        = "internal"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: kind, Message: message})
}

// sendError classifies err into (status, kind) and writes the response.
// Internal failures are logged with detail but reported generically.
func (g *Gateway) sendError(w http.ResponseWriter, err error) {
	var verr *envelope.ValidationError

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		g.sendJSONError(w, http.StatusUnauthorized, kindAuthError, "token expired")
	case errors.Is(err, auth.ErrScopeMismatch):
		g.sendJSONError(w, http.StatusUnauthorized, kindAuthError, "token scope mismatch")
	case errors.Is(err, auth.ErrWrongSubject), errors.Is(err, auth.ErrInvalidToken):
		g.sendJSONError(w, http.StatusUnauthorized, kindAuthError, "invalid token")
	case errors.Is(err, auth.ErrMissingKey):
		g.sendJSONError(w, http.StatusInternalServerError, kindConfigError, "no signing key configured for scope")
	case errors.As(err, &verr):
		g.sendJSONError(w, http.StatusBadRequest, kindValidationError, verr.Error())
	case errors.Is(err, ratelimit.ErrLimited):
		g.sendJSONError(w, http.StatusTooManyRequests, kindRateLimitError, "rate limit exceeded, retry later")
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, kindNotFound, "conversation not found")
	default:
		g.logger.Error("request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, kindInternal, "internal server error")
	}
}
