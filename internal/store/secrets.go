// ABOUTME: Webhook signing secret records scoped per provider and tenant
// ABOUTME: The core stores secrets; signature checks happen at the ingress layer

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

// PutWebhookSecret records (or replaces) the signing secret for a provider
// registration within a tenant scope.
func (s *SQLiteStore) PutWebhookSecret(ctx context.Context, secret *WebhookSecret) error {
	now := time.Now().UTC()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	secret.UpdatedAt = now

	query := `
		INSERT INTO webhook_secrets (provider, env, tenant, team, secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, env, tenant, team)
		DO UPDATE SET secret = excluded.secret, updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		secret.Provider,
		secret.Tenant.Env,
		secret.Tenant.Tenant,
		secret.Tenant.Team,
		secret.Secret,
		secret.CreatedAt.Format(time.RFC3339),
		secret.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting webhook secret: %w", err)
	}

	s.logger.Debug("webhook secret recorded", "provider", secret.Provider, "scope", secret.Tenant.Key())
	return nil
}

// GetWebhookSecret returns the recorded secret or ErrNotFound.
func (s *SQLiteStore) GetWebhookSecret(ctx context.Context, provider string, tenant envelope.TenantCtx) (*WebhookSecret, error) {
	query := `
		SELECT provider, env, tenant, team, secret, created_at, updated_at
		FROM webhook_secrets
		WHERE provider = ? AND env = ? AND tenant = ? AND team = ?
	`

	var secret WebhookSecret
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, provider, tenant.Env, tenant.Tenant, tenant.Team).Scan(
		&secret.Provider,
		&secret.Tenant.Env,
		&secret.Tenant.Tenant,
		&secret.Tenant.Team,
		&secret.Secret,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying webhook secret: %w", err)
	}

	if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
		secret.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		secret.UpdatedAt = parsed
	}
	return &secret, nil
}
