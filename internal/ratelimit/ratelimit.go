// ABOUTME: Rate limiting for token generation, keyed per tenant scope
// ABOUTME: Pluggable store: Redis in production, in-memory fixed window otherwise

package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimited is returned when a scope has exhausted its token budget for
// the current window. Callers may retry after the window rolls over.
var ErrLimited = errors.New("rate limit exceeded")

// DefaultWindow is used when no window is configured. A zero window would
// otherwise expire every count immediately and let all calls through.
const DefaultWindow = time.Minute

// Limiter decides whether a scope key may mint another token right now.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes one unit for key, or returns ErrLimited.
	Allow(ctx context.Context, key string) error

	// Close releases any resources held by the limiter.
	Close() error
}
