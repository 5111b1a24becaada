package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/replyflow/internal/app/bootstrap"
	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/internal/inbound"
)

func transcriptCmd() *cobra.Command {
	var (
		tenantID int64
		address  string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Print the latest turns of a customer's conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := inbound.NormalizeAddress(address)
			if addr == "" {
				return fmt.Errorf("invalid --address %q", address)
			}
			return withStore(cmd, func(ctx context.Context, store bootstrap.Store) error {
				id, err := store.LookupConversation(ctx, tenantID, addr)
				if errors.Is(err, conversation.ErrConversationNotFound) {
					return fmt.Errorf("no conversation for %s in tenant %d", addr, tenantID)
				}
				if err != nil {
					return err
				}
				turns, err := store.RecentHistory(ctx, id, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, turn := range turns {
					fmt.Fprintf(out, "%s  %-8s %s\n", turn.CreatedAt.UTC().Format(time.RFC3339), turn.Role, turn.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 1, "tenant id")
	cmd.Flags().StringVar(&address, "address", "", "customer address (phone number)")
	cmd.Flags().IntVar(&limit, "limit", conversation.DefaultHistoryLimit, "maximum turns to print")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}
