package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/replyflow/internal/app/bootstrap"
	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// openStore is replaced in tests.
var openStore = func(ctx context.Context, cfg *appconfig.Config) (bootstrap.Store, error) {
	return bootstrap.BuildStore(ctx, cfg, logging.New("warn"))
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "replyctl",
		Short:        "Operate ReplyFlow tenants, catalogs and transcripts",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.AddCommand(catalogCmd())
	root.AddCommand(transcriptCmd())
	return root
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store bootstrap.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, appconfig.Load())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}
