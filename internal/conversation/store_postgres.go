package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/replyflow/internal/catalog"
)

type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on PostgreSQL. The schema lives in migrations/.
type PostgresStore struct {
	db     pgxConn
	close  func()
	ping   func(context.Context) error
	tracer trace.Tracer
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool cannot be nil")
	}
	return &PostgresStore{db: pool, close: pool.Close, ping: pool.Ping, tracer: defaultTracer()}
}

func newPostgresStoreWithConn(db pgxConn) *PostgresStore {
	return &PostgresStore{db: db, close: func() {}, tracer: defaultTracer()}
}

func (s *PostgresStore) Close() error {
	s.close()
	return nil
}

// Ping checks that the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *PostgresStore) EnsureTenant(ctx context.Context, tenantID int64, name string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		tenantID, name)
	if err != nil {
		return fmt.Errorf("conversation: ensure tenant %d: %w", tenantID, err)
	}
	return nil
}

func (s *PostgresStore) GetOrCreateConversation(ctx context.Context, tenantID int64, address string) (id int64, err error) {
	ctx, span := startSpan(ctx, s.tracer, "conversation.store.get_or_create",
		attribute.Int64("tenant.id", tenantID))
	defer func() { endSpan(span, err) }()

	// The upsert touches last_message_at so RETURNING yields the id for both
	// the insert and the conflict path in one statement.
	err = s.db.QueryRow(ctx, `
		INSERT INTO conversations (tenant_id, customer_address)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, customer_address)
		DO UPDATE SET last_message_at = now()
		RETURNING id`, tenantID, address).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("conversation: get or create conversation: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) LookupConversation(ctx context.Context, tenantID int64, address string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`SELECT id FROM conversations WHERE tenant_id = $1 AND customer_address = $2`,
		tenantID, address).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrConversationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("conversation: lookup conversation: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, conversationID int64, role Role, content string) (err error) {
	if err := validateTurn(role, content); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, s.tracer, "conversation.store.append_turn",
		attribute.Int64("conversation.id", conversationID),
		attribute.String("turn.role", string(role)))
	defer func() { endSpan(span, err) }()

	_, err = s.db.Exec(ctx,
		`INSERT INTO turns (conversation_id, role, content) VALUES ($1, $2, $3)`,
		conversationID, string(role), content)
	if err != nil {
		return fmt.Errorf("conversation: append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentHistory(ctx context.Context, conversationID int64, limit int) (turns []Turn, err error) {
	ctx, span := startSpan(ctx, s.tracer, "conversation.store.recent_history",
		attribute.Int64("conversation.id", conversationID))
	defer func() { endSpan(span, err) }()

	rows, err := s.db.Query(ctx, `
		SELECT id, role, content, created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY id DESC
		LIMIT $2`, conversationID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("conversation: query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		turn := Turn{ConversationID: conversationID}
		var role string
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		turn.Role = Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate history: %w", err)
	}
	reverseTurns(turns)
	return turns, nil
}

func (s *PostgresStore) ListCatalog(ctx context.Context, tenantID int64) ([]catalog.Item, error) {
	rows, err := s.db.Query(ctx,
		`SELECT name, price FROM catalog_items WHERE tenant_id = $1 ORDER BY name`, tenantID)
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

func (s *PostgresStore) CatalogText(ctx context.Context, tenantID int64) (string, error) {
	items, err := s.ListCatalog(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return catalog.Render(items), nil
}

func (s *PostgresStore) ReplaceCatalog(ctx context.Context, tenantID int64, items []catalog.Item) error {
	items, err := catalog.Normalize(items)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("conversation: begin catalog replace: %w", err)
	}
	if err := replaceCatalogPostgres(ctx, tx, tenantID, items); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("conversation: commit catalog replace: %w", err)
	}
	return nil
}

func replaceCatalogPostgres(ctx context.Context, tx pgx.Tx, tenantID int64, items []catalog.Item) error {
	if _, err := tx.Exec(ctx, `DELETE FROM catalog_items WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("conversation: clear catalog: %w", err)
	}
	for _, item := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO catalog_items (tenant_id, name, price) VALUES ($1, $2, $3)`,
			tenantID, item.Name, item.Price); err != nil {
			return fmt.Errorf("conversation: insert catalog item %q: %w", item.Name, err)
		}
	}
	return nil
}
