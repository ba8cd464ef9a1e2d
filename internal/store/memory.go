// ABOUTME: In-memory implementation of the Store interface
// ABOUTME: Used by tests and zero-config runs; same semantics as SQLiteStore

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

// memConversation bundles a conversation with its activity log.
type memConversation struct {
	conv       Conversation
	activities []envelope.StoredActivity
}

// MemoryStore implements Store entirely in memory. Appends are serialized
// per conversation through the same lock arena the SQLite store uses;
// the map itself is guarded by mu.
type MemoryStore struct {
	mu            sync.RWMutex
	limits        envelope.Limits
	locks         *lockTable
	conversations map[string]*memConversation
	secrets       map[string]*WebhookSecret
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(limits envelope.Limits) *MemoryStore {
	return &MemoryStore{
		limits:        limits,
		locks:         newLockTable(),
		conversations: make(map[string]*memConversation),
		secrets:       make(map[string]*WebhookSecret),
	}
}

func (m *MemoryStore) CreateConversation(_ context.Context, tenant envelope.TenantCtx) (*Conversation, error) {
	conv := Conversation{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Watermark: 0,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.conversations[conv.ID] = &memConversation{conv: conv}
	m.mu.Unlock()

	out := conv
	return &out, nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mc, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := mc.conv
	return &out, nil
}

func (m *MemoryStore) AppendActivity(_ context.Context, conversationID string, activity *envelope.Activity) (int64, error) {
	if err := m.limits.ValidateActivity(activity); err != nil {
		return 0, err
	}

	lock := m.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.conversations[conversationID]
	if !ok {
		return 0, ErrNotFound
	}

	seq := mc.conv.Watermark + 1
	stored := envelope.StoredActivity{
		Activity:  *activity,
		Seq:       seq,
		CreatedAt: time.Now().UTC(),
	}
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	mc.activities = append(mc.activities, stored)
	mc.conv.Watermark = seq
	return seq, nil
}

func (m *MemoryStore) ActivitiesSince(_ context.Context, conversationID string, since int64) ([]envelope.StoredActivity, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mc, ok := m.conversations[conversationID]
	if !ok {
		return nil, 0, ErrNotFound
	}

	out := make([]envelope.StoredActivity, 0)
	for _, act := range mc.activities {
		if act.Seq > since {
			out = append(out, act)
		}
	}
	return out, nextWatermark(mc.conv.Watermark, since, len(out)), nil
}

func (m *MemoryStore) PutWebhookSecret(_ context.Context, secret *WebhookSecret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	copied := *secret
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	m.secrets[secret.Provider+"|"+secret.Tenant.Key()] = &copied
	return nil
}

func (m *MemoryStore) GetWebhookSecret(_ context.Context, provider string, tenant envelope.TenantCtx) (*WebhookSecret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.secrets[provider+"|"+tenant.Key()]
	if !ok {
		return nil, ErrNotFound
	}
	out := *secret
	return &out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
