package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ludex/internal/api"
	"ludex/internal/catalogs"
	"ludex/internal/config"
	"ludex/internal/library"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh identity links and canonical metadata from enabled catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				logger := ctx.cliLogger()
				registry := catalogs.NewRegistry(cfg, logger)
				if !registry.Enabled() {
					fmt.Fprintln(cmd.OutOrStdout(), "No catalogs enabled; nothing to refresh")
					return nil
				}

				start := time.Now()
				summary, err := catalogs.NewEnricher(store, registry, logger).Refresh(cmd.Context())
				if err != nil {
					return err
				}
				duration := time.Since(start)

				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromRefresh(*summary, duration))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Refreshed %d of %d identity links in %s\n",
					summary.Refreshed, summary.Links, duration.Round(time.Millisecond))
				if summary.Enriched > 0 {
					fmt.Fprintf(out, "Canonical games enriched: %d\n", summary.Enriched)
				}
				if summary.Failed > 0 {
					fmt.Fprintf(out, "Failed links: %d (see logs)\n", summary.Failed)
				}
				return nil
			})
		},
	}
}
