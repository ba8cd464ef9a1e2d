// ABOUTME: Webex webhook adapter over the webexapis.com REST surface
// ABOUTME: Subscribes to message-created events with Bearer token auth

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultWebexBase is the production Webex API base URL.
const DefaultWebexBase = "https://webexapis.com/v1"

const (
	webexResource = "messages"
	webexEvent    = "created"
)

// StatusError is a non-2xx platform response. Only server-side failures
// are worth retrying; 4xx means the request itself is wrong.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d body=%s", e.Provider, e.Status, e.Body)
}

func (e *StatusError) Retryable() bool {
	return e.Status >= 500
}

// WebexAdapter manages webhook registrations through the Webex REST API.
type WebexAdapter struct {
	base   string
	token  string
	client *http.Client
}

// NewWebexAdapter creates an adapter using the given bot token. base
// overrides the API endpoint; empty means production.
func NewWebexAdapter(base, token string, client *http.Client) *WebexAdapter {
	if base == "" {
		base = DefaultWebexBase
	}
	if client == nil {
		client = &http.Client{}
	}
	return &WebexAdapter{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: client,
	}
}

func (a *WebexAdapter) Provider() string { return "webex" }

type webexWebhook struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TargetURL string `json:"targetUrl"`
	Resource  string `json:"resource"`
	Event     string `json:"event"`
	Secret    string `json:"secret,omitempty"`
}

type webexWebhookList struct {
	Items []webexWebhook `json:"items"`
}

// List returns the registrations filtered to the messages:created event.
func (a *WebexAdapter) List(ctx context.Context) ([]Subscription, error) {
	body, err := a.do(ctx, http.MethodGet, "/webhooks", nil)
	if err != nil {
		return nil, err
	}

	var list webexWebhookList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding webhook list: %w", err)
	}

	var subs []Subscription
	for _, wh := range list.Items {
		if wh.Resource != webexResource || wh.Event != webexEvent {
			continue
		}
		subs = append(subs, Subscription{
			ID:        wh.ID,
			Name:      wh.Name,
			TargetURL: wh.TargetURL,
			Event:     wh.Resource + ":" + wh.Event,
		})
	}
	return subs, nil
}

func (a *WebexAdapter) Create(ctx context.Context, d Desired) (*Subscription, error) {
	req := webexWebhook{
		Name:      d.Name,
		TargetURL: d.TargetURL,
		Resource:  webexResource,
		Event:     webexEvent,
		Secret:    d.Secret,
	}
	body, err := a.do(ctx, http.MethodPost, "/webhooks", req)
	if err != nil {
		return nil, err
	}
	return decodeWebexSubscription(body)
}

func (a *WebexAdapter) Update(ctx context.Context, id string, d Desired) (*Subscription, error) {
	// Webex updates take name and targetUrl only; resource and event are
	// immutable after creation.
	req := struct {
		Name      string `json:"name"`
		TargetURL string `json:"targetUrl"`
		Secret    string `json:"secret,omitempty"`
	}{Name: d.Name, TargetURL: d.TargetURL, Secret: d.Secret}

	body, err := a.do(ctx, http.MethodPut, "/webhooks/"+id, req)
	if err != nil {
		return nil, err
	}
	return decodeWebexSubscription(body)
}

func (a *WebexAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.do(ctx, http.MethodDelete, "/webhooks/"+id, nil)
	return err
}

func decodeWebexSubscription(body []byte) (*Subscription, error) {
	var wh webexWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("decoding webhook: %w", err)
	}
	return &Subscription{
		ID:        wh.ID,
		Name:      wh.Name,
		TargetURL: wh.TargetURL,
		Event:     wh.Resource + ":" + wh.Event,
	}, nil
}

func (a *WebexAdapter) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webex request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading webex response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Provider: "webex", Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

var _ PlatformAdapter = (*WebexAdapter)(nil)
