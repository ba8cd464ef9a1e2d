// ABOUTME: HTTP handlers for token issuance, conversations, and activities
// ABOUTME: Implements the polling transport surface with bearer token auth

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greentic/messaging-gateway/internal/auth"
	"github.com/greentic/messaging-gateway/internal/envelope"
	"github.com/greentic/messaging-gateway/internal/events"
	"github.com/greentic/messaging-gateway/internal/ratelimit"
)

// GenerateTokenRequest is the JSON request body for POST /tokens/generate.
type GenerateTokenRequest struct {
	UserID string             `json:"user_id,omitempty"`
	Ctx    envelope.TenantCtx `json:"ctx"`
}

// TokenResponse is the JSON response for POST /tokens/generate.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// CreateConversationResponse is the JSON response for POST /conversations.
type CreateConversationResponse struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
	ExpiresIn      int64  `json:"expires_in"`
}

// PostActivityResponse is the JSON response for posting an activity. The
// id is the assigned sequence number rendered as an opaque string.
type PostActivityResponse struct {
	ID string `json:"id"`
}

// ActivitySetResponse is the JSON response for fetching activities.
// Watermark is an opaque cursor; clients echo it back, never parse it.
type ActivitySetResponse struct {
	Activities []envelope.StoredActivity `json:"activities"`
	Watermark  string                    `json:"watermark"`
}

// handleGenerateToken handles POST /tokens/generate. Unauthenticated but
// rate-limited per tenant scope; each call mints a fresh token.
func (g *Gateway) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req GenerateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, kindValidationError, "invalid JSON body")
		return
	}
	if req.Ctx.Env == "" || req.Ctx.Tenant == "" {
		g.sendJSONError(w, http.StatusBadRequest, kindValidationError, "ctx.env and ctx.tenant are required")
		return
	}

	if g.limiter != nil {
		if err := g.limiter.Allow(r.Context(), req.Ctx.Key()); err != nil {
			if errors.Is(err, ratelimit.ErrLimited) {
				g.sendError(w, err)
				return
			}
			// A broken limit store must not take token issuance down.
			g.logger.Warn("rate limit check failed, allowing request", "error", err)
		}
	}

	subject := req.UserID
	if subject == "" {
		subject = uuid.NewString()
	}

	token, expiresAt, err := g.tokens.Issue(auth.SubjectUser, subject, req.Ctx, "", 0)
	if err != nil {
		g.sendError(w, err)
		return
	}

	g.writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: expiresIn(expiresAt),
	})
}

// handleCreateConversation handles POST /conversations. Requires a user
// token; returns a fresh conversation plus a token bound to it.
func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, err := g.authorize(r, auth.SubjectUser)
	if err != nil {
		g.sendError(w, err)
		return
	}

	conv, err := g.store.CreateConversation(r.Context(), claims.Scope)
	if err != nil {
		g.sendError(w, err)
		return
	}

	token, expiresAt, err := g.tokens.Issue(auth.SubjectConversation, conv.ID, claims.Scope, conv.ID, 0)
	if err != nil {
		g.sendError(w, err)
		return
	}

	g.logger.Info("conversation created", "conversation_id", conv.ID, "scope", claims.Scope.Key())
	g.writeJSON(w, http.StatusCreated, CreateConversationResponse{
		ConversationID: conv.ID,
		Token:          token,
		ExpiresIn:      expiresIn(expiresAt),
	})
}

// handleConversationRoutes dispatches /conversations/{id}/activities.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "activities" {
		g.sendJSONError(w, http.StatusNotFound, kindNotFound, "unknown route")
		return
	}
	conversationID := parts[0]

	claims, err := g.authorize(r, auth.SubjectConversation)
	if err != nil {
		g.sendError(w, err)
		return
	}
	// Binding is checked before existence, so a foreign conversation id
	// always reads as auth_error, never not_found. Callers cannot use
	// their own token to test whether someone else's id exists.
	if claims.Conversation != conversationID {
		g.sendJSONError(w, http.StatusUnauthorized, kindAuthError, "token not bound to this conversation")
		return
	}

	switch r.Method {
	case http.MethodPost:
		g.handlePostActivity(w, r, conversationID, claims)
	case http.MethodGet:
		g.handleFetchActivities(w, r, conversationID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePostActivity appends one activity and reports its sequence number.
func (g *Gateway) handlePostActivity(w http.ResponseWriter, r *http.Request, conversationID string, claims *auth.Claims) {
	var activity envelope.Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, kindValidationError, "invalid JSON body")
		return
	}

	seq, err := g.store.AppendActivity(r.Context(), conversationID, &activity)
	if err != nil {
		g.sendError(w, err)
		return
	}

	// Best-effort: a broker outage never fails the append.
	if err := g.events.PublishActivityAppended(r.Context(), events.ActivityAppendedV1{
		Tenant:         claims.Scope,
		ConversationID: conversationID,
		Seq:            seq,
		ActivityID:     activity.ID,
		ActivityType:   activity.Type,
		At:             time.Now().UTC(),
	}); err != nil {
		g.logger.Warn("event publish failed", "conversation_id", conversationID, "seq", seq, "error", err)
	}

	g.writeJSON(w, http.StatusCreated, PostActivityResponse{
		ID: strconv.FormatInt(seq, 10),
	})
}

// handleFetchActivities returns activities after the caller's watermark.
// An absent watermark means "from the beginning".
func (g *Gateway) handleFetchActivities(w http.ResponseWriter, r *http.Request, conversationID string) {
	since := int64(-1)
	if raw := r.URL.Query().Get("watermark"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			g.sendJSONError(w, http.StatusBadRequest, kindValidationError, "invalid watermark")
			return
		}
		since = parsed
	}

	activities, watermark, err := g.store.ActivitiesSince(r.Context(), conversationID, since)
	if err != nil {
		g.sendError(w, err)
		return
	}
	if activities == nil {
		activities = []envelope.StoredActivity{}
	}

	g.writeJSON(w, http.StatusOK, ActivitySetResponse{
		Activities: activities,
		Watermark:  strconv.FormatInt(watermark, 10),
	})
}

// authorize extracts and verifies the bearer token on r.
func (g *Gateway) authorize(r *http.Request, want auth.SubjectKind) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}
	return g.tokens.Verify(token, want, nil)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func expiresIn(expiresAt time.Time) int64 {
	return int64(time.Until(expiresAt).Round(time.Second).Seconds())
}
