// ABOUTME: Activity lifecycle events published for downstream consumers (CRM, audit)
// ABOUTME: Envelope/meta shape follows the multichat event schema conventions

package events

import (
	"context"
	"time"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

// Meta carries event identity and provenance.
type Meta struct {
	// Unique event ID
	ID string `json:"id"`
	// Trace / request correlation ID
	CorrelationID string `json:"correlation_id,omitempty"`
	// Emitting service and version
	Producer string `json:"producer,omitempty"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
	// Event name and version, e.g. messaging.activity.appended.v1
	Type string `json:"type"`
}

// Envelope wraps event data with its meta block.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// TypeActivityAppended is the event type emitted after a successful append.
const TypeActivityAppended = "messaging.activity.appended.v1"

// ActivityAppendedV1 is emitted on every activity appended to a
// conversation so downstream systems can observe traffic without polling.
type ActivityAppendedV1 struct {
	Tenant         envelope.TenantCtx `json:"tenant"`
	ConversationID string             `json:"conversation_id"`
	Seq            int64              `json:"seq"`
	ActivityID     string             `json:"activity_id"`
	ActivityType   string             `json:"activity_type"`
	At             time.Time          `json:"at"`
}

// RoutingKey returns the topic routing key for the event,
// e.g. "messaging.activity.appended.prod.acme".
func (e ActivityAppendedV1) RoutingKey() string {
	return "messaging.activity.appended." + e.Tenant.Env + "." + e.Tenant.Tenant
}

// Publisher emits activity events. Publishing is best-effort from the
// gateway's point of view: failures are logged, never surfaced to clients.
type Publisher interface {
	PublishActivityAppended(ctx context.Context, event ActivityAppendedV1) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishActivityAppended(context.Context, ActivityAppendedV1) error { return nil }
func (NopPublisher) Close() error                                                      { return nil }

var _ Publisher = NopPublisher{}
