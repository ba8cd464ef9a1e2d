// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/activity persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	limits envelope.Limits
	locks  *lockTable
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, limits envelope.Limits) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		limits: limits,
		locks:  newLockTable(),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			env        TEXT NOT NULL,
			tenant     TEXT NOT NULL,
			team       TEXT NOT NULL DEFAULT '',
			watermark  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS activities (
			conversation_id TEXT NOT NULL,
			seq             INTEGER NOT NULL,
			activity_id     TEXT NOT NULL,
			type            TEXT NOT NULL,
			body            TEXT NOT NULL,
			created_at      TEXT NOT NULL,

			PRIMARY KEY (conversation_id, seq),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE TABLE IF NOT EXISTS webhook_secrets (
			provider   TEXT NOT NULL,
			env        TEXT NOT NULL,
			tenant     TEXT NOT NULL,
			team       TEXT NOT NULL DEFAULT '',
			secret     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (provider, env, tenant, team)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation allocates a fresh conversation with watermark 0.
// Collision-free ids come from uuid v4, so concurrent creates never race.
func (s *SQLiteStore) CreateConversation(ctx context.Context, tenant envelope.TenantCtx) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Watermark: 0,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO conversations (id, env, tenant, team, watermark, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		tenant.Env,
		tenant.Tenant,
		tenant.Team,
		conv.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("conversation created", "conversation_id", conv.ID, "scope", tenant.Key())
	return conv, nil
}

// GetConversation returns the conversation or ErrNotFound.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, env, tenant, team, watermark, created_at
		FROM conversations
		WHERE id = ?
	`

	var conv Conversation
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.Tenant.Env,
		&conv.Tenant.Tenant,
		&conv.Tenant.Team,
		&conv.Watermark,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err != nil {
		s.logger.Warn("failed to parse conversation created_at", "id", conv.ID, "error", err)
	} else {
		conv.CreatedAt = parsed
	}
	return &conv, nil
}

// AppendActivity assigns the next sequence number and appends atomically.
// The read-modify-write runs under the conversation's lock and inside one
// transaction, so readers see either the pre- or post-append state.
func (s *SQLiteStore) AppendActivity(ctx context.Context, conversationID string, activity *envelope.Activity) (int64, error) {
	if err := s.limits.ValidateActivity(activity); err != nil {
		return 0, err
	}

	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var watermark int64
	err = tx.QueryRowContext(ctx, `SELECT watermark FROM conversations WHERE id = ?`, conversationID).Scan(&watermark)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading watermark: %w", err)
	}

	seq := watermark + 1
	stored := envelope.StoredActivity{
		Activity:  *activity,
		Seq:       seq,
		CreatedAt: time.Now().UTC(),
	}
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return 0, fmt.Errorf("encoding activity: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO activities (conversation_id, seq, activity_id, type, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conversationID, seq, stored.ID, stored.Type, string(body), stored.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("inserting activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET watermark = ? WHERE id = ?`, seq, conversationID); err != nil {
		return 0, fmt.Errorf("advancing watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing append: %w", err)
	}

	s.logger.Debug("activity appended", "conversation_id", conversationID, "seq", seq, "type", stored.Type)
	return seq, nil
}

// ActivitiesSince returns activities with seq > since in ascending order
// plus the watermark to poll from next.
func (s *SQLiteStore) ActivitiesSince(ctx context.Context, conversationID string, since int64) ([]envelope.StoredActivity, int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("beginning read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var watermark int64
	err = tx.QueryRowContext(ctx, `SELECT watermark FROM conversations WHERE id = ?`, conversationID).Scan(&watermark)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading watermark: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT body FROM activities
		WHERE conversation_id = ? AND seq > ?
		ORDER BY seq ASC
	`, conversationID, since)
	if err != nil {
		return nil, 0, fmt.Errorf("querying activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	activities := make([]envelope.StoredActivity, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, 0, fmt.Errorf("scanning activity row: %w", err)
		}
		var act envelope.StoredActivity
		if err := json.Unmarshal([]byte(body), &act); err != nil {
			return nil, 0, fmt.Errorf("decoding activity: %w", err)
		}
		activities = append(activities, act)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating activity rows: %w", err)
	}

	return activities, nextWatermark(watermark, since, len(activities)), nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
