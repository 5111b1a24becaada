package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/wolfman30/replyflow/internal/catalog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS catalog_items (
	tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	price     INTEGER NOT NULL CHECK (price >= 0),
	PRIMARY KEY (tenant_id, name)
);
CREATE TABLE IF NOT EXISTS conversations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id        INTEGER NOT NULL REFERENCES tenants(id),
	customer_address TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_message_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (tenant_id, customer_address)
);
CREATE TABLE IF NOT EXISTS turns (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL CHECK (role IN ('customer', 'bot')),
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns (conversation_id, id);
`

// SQLiteStore implements Store on an embedded SQLite file for single-process
// deployments and local development.
type SQLiteStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

// OpenSQLiteStore opens (or creates) the database at path and applies the schema.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("conversation: open sqlite: %w", err)
	}
	// One writer connection serializes find-or-create and catalog swaps.
	db.SetMaxOpenConns(1)

	store := NewSQLiteStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open database handle without touching the schema.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	if db == nil {
		panic("conversation: sqlite db cannot be nil")
	}
	return &SQLiteStore{db: db, tracer: defaultTracer()}
}

// Migrate creates missing tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("conversation: apply sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) EnsureTenant(ctx context.Context, tenantID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		tenantID, name)
	if err != nil {
		return fmt.Errorf("conversation: ensure tenant %d: %w", tenantID, err)
	}
	return nil
}

func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, tenantID int64, address string) (id int64, err error) {
	ctx, span := startSpan(ctx, s.tracer, "conversation.store.get_or_create",
		attribute.Int64("tenant.id", tenantID))
	defer func() { endSpan(span, err) }()

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (tenant_id, customer_address)
		VALUES (?, ?)
		ON CONFLICT (tenant_id, customer_address)
		DO UPDATE SET last_message_at = CURRENT_TIMESTAMP
		RETURNING id`, tenantID, address).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("conversation: get or create conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) LookupConversation(ctx context.Context, tenantID int64, address string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE tenant_id = ? AND customer_address = ?`,
		tenantID, address).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConversationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("conversation: lookup conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, conversationID int64, role Role, content string) (err error) {
	if err := validateTurn(role, content); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, s.tracer, "conversation.store.append_turn",
		attribute.Int64("conversation.id", conversationID),
		attribute.String("turn.role", string(role)))
	defer func() { endSpan(span, err) }()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, role, content) VALUES (?, ?, ?)`,
		conversationID, string(role), content)
	if err != nil {
		return fmt.Errorf("conversation: append turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentHistory(ctx context.Context, conversationID int64, limit int) (turns []Turn, err error) {
	ctx, span := startSpan(ctx, s.tracer, "conversation.store.recent_history",
		attribute.Int64("conversation.id", conversationID))
	defer func() { endSpan(span, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?`, conversationID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("conversation: query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		turn := Turn{ConversationID: conversationID}
		var (
			role      string
			createdAt any
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		turn.Role = Role(role)
		turn.CreatedAt = sqliteTime(createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate history: %w", err)
	}
	reverseTurns(turns)
	return turns, nil
}

func (s *SQLiteStore) ListCatalog(ctx context.Context, tenantID int64) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, price FROM catalog_items WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("conversation: query catalog: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var item catalog.Item
		if err := rows.Scan(&item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("conversation: scan catalog item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate catalog: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) CatalogText(ctx context.Context, tenantID int64) (string, error) {
	items, err := s.ListCatalog(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return catalog.Render(items), nil
}

func (s *SQLiteStore) ReplaceCatalog(ctx context.Context, tenantID int64, items []catalog.Item) error {
	items, err := catalog.Normalize(items)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin catalog replace: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items WHERE tenant_id = ?`, tenantID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("conversation: clear catalog: %w", err)
	}
	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_items (tenant_id, name, price) VALUES (?, ?, ?)`,
			tenantID, item.Name, item.Price); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("conversation: insert catalog item %q: %w", item.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit catalog replace: %w", err)
	}
	return nil
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// sqliteTime accepts both driver-parsed timestamps and the raw CURRENT_TIMESTAMP text.
func sqliteTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range sqliteTimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	case []byte:
		return sqliteTime(string(t))
	}
	return time.Time{}
}
