// ABOUTME: Platform adapter contract for webhook subscription management
// ABOUTME: Implemented per provider (Webex, Telegram); injectable for tests

package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// Subscription is a remote, third-party-owned webhook registration as
// observed through an adapter's List call.
type Subscription struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	// Event filter the subscription is registered for,
	// e.g. "messages:created" on Webex.
	Event string `json:"event,omitempty"`
}

// Desired is the single registration a reconciliation run converges to.
type Desired struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	// Secret is handed to the platform so it can sign callbacks.
	// Optional; platforms that do not support it ignore it.
	Secret string `json:"-"`
}

// PlatformAdapter is the per-platform REST surface the reconciler drives.
// Every call must honor the deadline on ctx; a timed-out call is a
// failure for that action, never retried here.
type PlatformAdapter interface {
	// Provider returns the provider key, e.g. "webex".
	Provider() string

	// List returns all remote subscriptions matching the provider's
	// message event filter, in platform-defined order.
	List(ctx context.Context) ([]Subscription, error)

	// Create registers a new subscription.
	Create(ctx context.Context, d Desired) (*Subscription, error)

	// Update points an existing subscription at the desired target.
	Update(ctx context.Context, id string, d Desired) (*Subscription, error)

	// Delete removes a subscription.
	Delete(ctx context.Context, id string) error
}

// GenerateSecret returns a fresh random signing secret for a new
// registration (32 bytes, hex-encoded).
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
