// ABOUTME: Tests for the Activity API handlers over httptest
// ABOUTME: Covers the full poll loop plus error kind mapping per endpoint

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentic/messaging-gateway/internal/auth"
	"github.com/greentic/messaging-gateway/internal/envelope"
	"github.com/greentic/messaging-gateway/internal/events"
	"github.com/greentic/messaging-gateway/internal/ratelimit"
	"github.com/greentic/messaging-gateway/internal/store"
)

var testCtx = envelope.TenantCtx{Env: "prod", Tenant: "acme", Team: "support"}

func newTestGateway(t *testing.T, limiter ratelimit.Limiter) (*Gateway, *httptest.Server) {
	t.Helper()

	st := store.NewMemoryStore(envelope.NewLimits(0, nil))
	tokens := auth.NewService([]byte("test-signing-key"), nil, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw := New(st, tokens, limiter, nil, logger)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return gw, srv
}

func postJSON(t *testing.T, url, bearer string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url, bearer string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestFullPollingFlow(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	// 1. Mint a user token.
	resp := postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{
		UserID: "user-1",
		Ctx:    testCtx,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[TokenResponse](t, resp)
	require.NotEmpty(t, tok.Token)
	assert.Greater(t, tok.ExpiresIn, int64(0))

	// 2. Create a conversation with it.
	resp = postJSON(t, srv.URL+"/conversations", tok.Token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conv := decode[CreateConversationResponse](t, resp)
	require.NotEmpty(t, conv.ConversationID)
	require.NotEmpty(t, conv.Token)

	// 3. Post two activities with the conversation token.
	base := srv.URL + "/conversations/" + conv.ConversationID + "/activities"
	for i, want := range []string{"1", "2"} {
		resp = postJSON(t, base, conv.Token, envelope.Activity{
			ID:   fmt.Sprintf("act-%d", i),
			Type: "message",
			Text: "hello",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		posted := decode[PostActivityResponse](t, resp)
		assert.Equal(t, want, posted.ID)
	}

	// 4. Fetch from the beginning, then poll from the new watermark.
	resp = getJSON(t, base, conv.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[ActivitySetResponse](t, resp)
	require.Len(t, page.Activities, 2)
	assert.Equal(t, int64(1), page.Activities[0].Seq)
	assert.Equal(t, int64(2), page.Activities[1].Seq)
	assert.Equal(t, "2", page.Watermark)

	resp = getJSON(t, base+"?watermark="+page.Watermark, conv.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[ActivitySetResponse](t, resp)
	assert.Empty(t, empty.Activities)
	assert.Equal(t, "2", empty.Watermark, "empty poll echoes the requested watermark")
}

func TestGenerateToken_Validation(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	resp := postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindValidationError, errResp.Error)
}

func TestGenerateToken_RateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute)
	t.Cleanup(func() { limiter.Close() })
	_, srv := newTestGateway(t, limiter)

	req := GenerateTokenRequest{Ctx: testCtx}

	resp := postJSON(t, srv.URL+"/tokens/generate", "", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/tokens/generate", "", req)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindRateLimitError, errResp.Error)
}

func TestCreateConversation_RequiresUserToken(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	// No token at all.
	resp := postJSON(t, srv.URL+"/conversations", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindAuthError, errResp.Error)

	// Garbage token.
	resp = postJSON(t, srv.URL+"/conversations", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestActivities_TokenBinding(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	userTok := decode[TokenResponse](t, postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{Ctx: testCtx}))

	convA := decode[CreateConversationResponse](t, postJSON(t, srv.URL+"/conversations", userTok.Token, nil))
	convB := decode[CreateConversationResponse](t, postJSON(t, srv.URL+"/conversations", userTok.Token, nil))

	// Conversation B's token must not work against conversation A.
	resp := postJSON(t, srv.URL+"/conversations/"+convA.ConversationID+"/activities", convB.Token, envelope.Activity{Type: "message"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindAuthError, errResp.Error)

	// A user token is the wrong subject kind for the activities routes.
	resp = postJSON(t, srv.URL+"/conversations/"+convA.ConversationID+"/activities", userTok.Token, envelope.Activity{Type: "message"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestActivities_ForeignIDReadsAsAuthError(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	userTok := decode[TokenResponse](t, postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{Ctx: testCtx}))
	conv := decode[CreateConversationResponse](t, postJSON(t, srv.URL+"/conversations", userTok.Token, nil))

	// A token used against an id it is not bound to gets auth_error even
	// when that id does not exist. Existence is never revealed first.
	resp := getJSON(t, srv.URL+"/conversations/no-such-conversation/activities", conv.Token)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindAuthError, errResp.Error)
}

// failingPublisher reports a broker failure on every publish.
type failingPublisher struct {
	calls int
}

func (p *failingPublisher) PublishActivityAppended(context.Context, events.ActivityAppendedV1) error {
	p.calls++
	return errors.New("broker unavailable")
}

func (p *failingPublisher) Close() error { return nil }

func TestPostActivity_PublishFailureDoesNotFailAppend(t *testing.T) {
	st := store.NewMemoryStore(envelope.NewLimits(0, nil))
	tokens := auth.NewService([]byte("test-signing-key"), nil, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &failingPublisher{}

	gw := New(st, tokens, nil, pub, logger)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	userTok := decode[TokenResponse](t, postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{Ctx: testCtx}))
	conv := decode[CreateConversationResponse](t, postJSON(t, srv.URL+"/conversations", userTok.Token, nil))
	base := srv.URL + "/conversations/" + conv.ConversationID + "/activities"

	resp := postJSON(t, base, conv.Token, envelope.Activity{Type: "message", Text: "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted := decode[PostActivityResponse](t, resp)
	assert.Equal(t, "1", posted.ID)
	assert.Equal(t, 1, pub.calls, "the publish was attempted")

	// The append is durable despite the broker failure.
	resp = getJSON(t, base, conv.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[ActivitySetResponse](t, resp)
	require.Len(t, page.Activities, 1)
}

func TestPostActivity_RejectedAttachment(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	userTok := decode[TokenResponse](t, postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{Ctx: testCtx}))
	conv := decode[CreateConversationResponse](t, postJSON(t, srv.URL+"/conversations", userTok.Token, nil))
	base := srv.URL + "/conversations/" + conv.ConversationID + "/activities"

	resp := postJSON(t, base, conv.Token, envelope.Activity{
		Type: "message",
		Attachments: []envelope.Attachment{
			{Name: "huge.png", MimeType: "image/png", SizeBytes: envelope.MaxAttachmentBytes + 1},
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindValidationError, errResp.Error)
	assert.Contains(t, errResp.Message, "huge.png")

	// The failed post consumed no sequence number.
	resp = postJSON(t, base, conv.Token, envelope.Activity{Type: "message"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted := decode[PostActivityResponse](t, resp)
	assert.Equal(t, "1", posted.ID)
}

func TestFetchActivities_InvalidWatermark(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	userTok := decode[TokenResponse](t, postJSON(t, srv.URL+"/tokens/generate", "", GenerateTokenRequest{Ctx: testCtx}))
	conv := decode[CreateConversationResponse](t, postJSON(t, srv.URL+"/conversations", userTok.Token, nil))
	base := srv.URL + "/conversations/" + conv.ConversationID + "/activities"

	for _, w := range []string{"abc", "-3"} {
		resp := getJSON(t, base+"?watermark="+w, conv.Token)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decode[errorResponse](t, resp)
		assert.Equal(t, kindValidationError, errResp.Error)
	}
}

func TestConversationRoutes_UnknownPath(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	resp := getJSON(t, srv.URL+"/conversations/abc/unknown", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errResp := decode[errorResponse](t, resp)
	assert.Equal(t, kindNotFound, errResp.Error)
}

func TestHealth(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
