// ABOUTME: Telegram webhook adapter over the Bot API single-slot surface
// ABOUTME: Maps getWebhookInfo/setWebhook/deleteWebhook onto the adapter contract

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

// DefaultTelegramBase is the production Telegram Bot API base URL.
const DefaultTelegramBase = "https://api.telegram.org"

// telegramSlotID stands in for a subscription ID. A bot has exactly one
// webhook slot, so there is never more than one subscription to address.
const telegramSlotID = "telegram-webhook"

// TelegramAdapter manages the bot's single webhook slot. Telegram has no
// named registrations, so the adapter reports the slot under the name it
// was constructed with; classification then works the same as for
// platforms with real names.
type TelegramAdapter struct {
	base     string
	token    string
	slotName string
	client   *http.Client
}

// NewTelegramAdapter creates an adapter for the given bot token. slotName
// is the registration name the slot is reported under.
func NewTelegramAdapter(base, token, slotName string, client *http.Client) *TelegramAdapter {
	if base == "" {
		base = DefaultTelegramBase
	}
	if client == nil {
		client = &http.Client{}
	}
	return &TelegramAdapter{
		base:     strings.TrimRight(base, "/"),
		token:    token,
		slotName: slotName,
		client:   client,
	}
}

func (a *TelegramAdapter) Provider() string { return "telegram" }

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

type telegramWebhookInfo struct {
	URL                  string `json:"url"`
	PendingUpdateCount   int    `json:"pending_update_count"`
	LastErrorMessage     string `json:"last_error_message,omitempty"`
	MaxConnections       int    `json:"max_connections,omitempty"`
	IPAddress            string `json:"ip_address,omitempty"`
	HasCustomCertificate bool   `json:"has_custom_certificate"`
}

// List reports zero or one subscriptions depending on whether the slot
// holds a URL.
func (a *TelegramAdapter) List(ctx context.Context) ([]Subscription, error) {
	result, err := a.call(ctx, "getWebhookInfo", nil)
	if err != nil {
		return nil, err
	}

	var info telegramWebhookInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("decoding webhook info: %w", err)
	}
	if info.URL == "" {
		return nil, nil
	}
	return []Subscription{{
		ID:        telegramSlotID,
		Name:      a.slotName,
		TargetURL: info.URL,
		Event:     "message",
	}}, nil
}

func (a *TelegramAdapter) Create(ctx context.Context, d Desired) (*Subscription, error) {
	return a.set(ctx, d)
}

// Update overwrites the slot. The id is ignored; there is only one.
func (a *TelegramAdapter) Update(ctx context.Context, _ string, d Desired) (*Subscription, error) {
	return a.set(ctx, d)
}

func (a *TelegramAdapter) Delete(ctx context.Context, _ string) error {
	_, err := a.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false})
	return err
}

func (a *TelegramAdapter) set(ctx context.Context, d Desired) (*Subscription, error) {
	params := map[string]any{
		"url":             d.TargetURL,
		"allowed_updates": []string{"message"},
	}
	if d.Secret != "" {
		params["secret_token"] = d.Secret
	}
	if _, err := a.call(ctx, "setWebhook", params); err != nil {
		return nil, err
	}
	return &Subscription{
		ID:        telegramSlotID,
		Name:      a.slotName,
		TargetURL: d.TargetURL,
		Event:     "message",
	}, nil
}

func (a *TelegramAdapter) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	var reqBody io.Reader
	if params != nil {
		buf, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	url := a.base + "/bot" + a.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, err
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading telegram response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Provider: "telegram", Status: resp.StatusCode, Body: string(body)}
	}

	var parsed telegramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding telegram response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram %s failed: %s", method, parsed.Description)
	}
	return parsed.Result, nil
}

var _ PlatformAdapter = (*TelegramAdapter)(nil)
