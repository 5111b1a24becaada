package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfman30/replyflow/internal/app/bootstrap"
	"github.com/wolfman30/replyflow/internal/catalog"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show or reseed a tenant's catalog",
	}
	cmd.AddCommand(catalogSeedCmd())
	cmd.AddCommand(catalogShowCmd())
	return cmd
}

func catalogSeedCmd() *cobra.Command {
	var (
		tenantID int64
		path     string
		name     string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace a tenant's catalog with the items in a YAML file",
		Long: `Reads a YAML seed file of the form

  tenant: Moon Kitchen
  items:
    - name: Biryani
      price: 350

and swaps the tenant's whole catalog in one transaction. The tenant row is
created when missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}
			if name == "" {
				name = seed.Tenant
			}
			if name == "" {
				name = fmt.Sprintf("tenant-%d", tenantID)
			}
			return withStore(cmd, func(ctx context.Context, store bootstrap.Store) error {
				if err := store.EnsureTenant(ctx, tenantID, name); err != nil {
					return err
				}
				if err := store.ReplaceCatalog(ctx, tenantID, seed.Items); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items for tenant %d\n", len(seed.Items), tenantID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 1, "tenant id")
	cmd.Flags().StringVar(&path, "file", "", "path to the YAML seed file")
	cmd.Flags().StringVar(&name, "name", "", "tenant name (defaults to the file's tenant field)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func catalogShowCmd() *cobra.Command {
	var tenantID int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a tenant's catalog as it appears in prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store bootstrap.Store) error {
				text, err := store.CatalogText(ctx, tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 1, "tenant id")
	return cmd
}
