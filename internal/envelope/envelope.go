// ABOUTME: Canonical channel-agnostic activity envelope and attachment types
// ABOUTME: Carries the tenant context shared by tokens, storage, and webhooks

package envelope

import (
	"encoding/json"
	"time"
)

// TenantCtx identifies the environment/tenant/team scope a message or
// credential belongs to. Team is optional and may be empty.
type TenantCtx struct {
	Env    string `json:"env"`
	Tenant string `json:"tenant"`
	Team   string `json:"team,omitempty"`
}

// Key returns a stable string form suitable for map keys and rate-limit
// buckets, e.g. "prod:acme:support".
func (t TenantCtx) Key() string {
	return t.Env + ":" + t.Tenant + ":" + t.Team
}

// Attachment describes a file carried alongside an activity.
type Attachment struct {
	Name      string `json:"name,omitempty"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	URL       string `json:"url,omitempty"`
}

// Activity is the channel-agnostic message unit posted to and fetched from
// a conversation. Payload preserves the raw activity JSON so channel
// renderers downstream see exactly what the client sent.
type Activity struct {
	ID          string          `json:"id,omitempty"`
	Type        string          `json:"type"`
	Text        string          `json:"text,omitempty"`
	From        string          `json:"from,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// StoredActivity is an Activity after insertion: the store has assigned the
// sequence number and insertion timestamp. Immutable once appended.
type StoredActivity struct {
	Activity
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}
