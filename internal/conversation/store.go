package conversation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/replyflow/internal/catalog"
)

// ErrConversationNotFound is returned by LookupConversation for unknown addresses.
var ErrConversationNotFound = errors.New("conversation: not found")

// Store persists tenants, catalogs, conversations and their turns. Every call
// reads through to the database; nothing is cached between requests.
type Store interface {
	// EnsureTenant creates the tenant row if it does not exist.
	EnsureTenant(ctx context.Context, tenantID int64, name string) error
	// GetOrCreateConversation atomically finds or inserts the conversation for
	// (tenantID, address). Concurrent first calls yield one row.
	GetOrCreateConversation(ctx context.Context, tenantID int64, address string) (int64, error)
	// LookupConversation finds a conversation without creating it.
	LookupConversation(ctx context.Context, tenantID int64, address string) (int64, error)
	// AppendTurn adds a turn. Turns are never updated or deleted.
	AppendTurn(ctx context.Context, conversationID int64, role Role, content string) error
	// RecentHistory returns at most limit of the latest turns, oldest first.
	RecentHistory(ctx context.Context, conversationID int64, limit int) ([]Turn, error)
	// ListCatalog returns the tenant's items ordered by name.
	ListCatalog(ctx context.Context, tenantID int64) ([]catalog.Item, error)
	// CatalogText renders the catalog for prompts, or catalog.EmptyText.
	CatalogText(ctx context.Context, tenantID int64) (string, error)
	// ReplaceCatalog swaps the tenant's whole catalog in one transaction.
	ReplaceCatalog(ctx context.Context, tenantID int64, items []catalog.Item) error
	Close() error
}

const tracerName = "github.com/wolfman30/replyflow/internal/conversation"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
