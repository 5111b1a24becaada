package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// Store is a conversation store that can also answer readiness probes.
type Store interface {
	conversation.Store
	Ping(ctx context.Context) error
}

// BuildStore opens Postgres when DATABASE_URL is set and falls back to the
// embedded SQLite file otherwise.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("conversation store ready", "driver", "postgres")
		return conversation.NewPostgresStore(pool), nil
	}

	store, err := conversation.OpenSQLiteStore(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	logger.Info("conversation store ready", "driver", "sqlite", "path", cfg.SQLitePath)
	return store, nil
}

// EnsureTenants creates a row for the default tenant and every routed tenant
// so conversations can reference them.
func EnsureTenants(ctx context.Context, store conversation.Store, cfg *appconfig.Config, tenantIDs []int64) error {
	for _, id := range tenantIDs {
		name := fmt.Sprintf("tenant-%d", id)
		if id == cfg.DefaultTenantID && strings.TrimSpace(cfg.DefaultTenantName) != "" {
			name = cfg.DefaultTenantName
		}
		if err := store.EnsureTenant(ctx, id, name); err != nil {
			return err
		}
	}
	return nil
}
