// ABOUTME: Tests for the Telegram single-slot adapter against a stub server
// ABOUTME: Covers slot listing, setWebhook parameters, and API-level failures

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramList_EmptySlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/getWebhookInfo", r.URL.Path)
		fmt.Fprint(w, `{"ok":true,"result":{"url":"","pending_update_count":0}}`)
	}))
	defer srv.Close()

	adapter := NewTelegramAdapter(srv.URL, "bot-token", "greentic:telegram", nil)
	subs, err := adapter.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs, "empty slot means no subscriptions")
}

func TestTelegramList_OccupiedSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"url":"https://cb/x","pending_update_count":3}}`)
	}))
	defer srv.Close()

	adapter := NewTelegramAdapter(srv.URL, "bot-token", "greentic:telegram", nil)
	subs, err := adapter.List(context.Background())
	require.NoError(t, err)

	require.Len(t, subs, 1)
	assert.Equal(t, "greentic:telegram", subs[0].Name, "slot is reported under the configured name")
	assert.Equal(t, "https://cb/x", subs[0].TargetURL)
}

func TestTelegramSet_SendsSecretToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/setWebhook", r.URL.Path)

		var params map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "https://cb/x", params["url"])
		assert.Equal(t, "hook-secret", params["secret_token"])

		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}))
	defer srv.Close()

	adapter := NewTelegramAdapter(srv.URL, "bot-token", "greentic:telegram", nil)
	sub, err := adapter.Create(context.Background(), Desired{
		Name:      "greentic:telegram",
		TargetURL: "https://cb/x",
		Secret:    "hook-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cb/x", sub.TargetURL)
}

func TestTelegramDelete(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}))
	defer srv.Close()

	adapter := NewTelegramAdapter(srv.URL, "bot-token", "greentic:telegram", nil)
	require.NoError(t, adapter.Delete(context.Background(), telegramSlotID))
	assert.Equal(t, "/botbot-token/deleteWebhook", gotPath)
}

func TestTelegram_APIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	adapter := NewTelegramAdapter(srv.URL, "bad-token", "greentic:telegram", nil)
	_, err := adapter.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}
