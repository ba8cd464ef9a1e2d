// ABOUTME: Store interface and data types for conversation persistence
// ABOUTME: Defines Conversation, webhook secret records, and the Store interface

package store

import (
	"context"
	"errors"
	"time"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Conversation is a durable per-conversation record. The watermark is the
// sequence number of the most recently appended activity; it starts at 0
// and activities are numbered from 1 with no gaps.
type Conversation struct {
	ID        string
	Tenant    envelope.TenantCtx
	Watermark int64
	CreatedAt time.Time
}

// WebhookSecret records the signing secret issued for a provider webhook
// registration. The core stores and returns secrets; verifying inbound
// callback signatures is the ingress layer's job.
type WebhookSecret struct {
	Provider  string
	Tenant    envelope.TenantCtx
	Secret    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines conversation and webhook-secret persistence.
//
// AppendActivity serializes the read-modify-write per conversation:
// concurrent appends to one conversation never duplicate or skip sequence
// numbers, and appends to distinct conversations proceed in parallel.
// ActivitiesSince may run concurrently with an append and observes either
// the pre- or post-append state.
type Store interface {
	// CreateConversation allocates a fresh conversation with watermark 0.
	CreateConversation(ctx context.Context, tenant envelope.TenantCtx) (*Conversation, error)

	// GetConversation returns the conversation or ErrNotFound.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// AppendActivity validates attachments, assigns the next sequence
	// number, and appends atomically. Returns the assigned sequence number.
	// A validation failure leaves the conversation unchanged and consumes
	// no sequence number.
	AppendActivity(ctx context.Context, conversationID string, activity *envelope.Activity) (int64, error)

	// ActivitiesSince returns activities with sequence number > since in
	// ascending order, plus the watermark the caller should poll from next.
	// since < 0 means "from the beginning". An empty result is a normal
	// "no update" response and echoes the requested watermark.
	ActivitiesSince(ctx context.Context, conversationID string, since int64) ([]envelope.StoredActivity, int64, error)

	// PutWebhookSecret records (or replaces) the signing secret for a
	// provider registration within a tenant scope.
	PutWebhookSecret(ctx context.Context, secret *WebhookSecret) error

	// GetWebhookSecret returns the recorded secret or ErrNotFound.
	GetWebhookSecret(ctx context.Context, provider string, tenant envelope.TenantCtx) (*WebhookSecret, error)

	// Close releases any resources held by the store
	Close() error
}

// nextWatermark picks the watermark to hand back from a fetch. When
// nothing new exists the requested position is echoed so the poller does
// not lose its place.
func nextWatermark(current, since int64, n int) int64 {
	if n == 0 && since >= 0 {
		return since
	}
	return current
}
