package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ludex/internal/api"
	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/match"
	"ludex/internal/resolve"
	"ludex/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan library roots and refresh match suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				logger := ctx.cliLogger()
				start := time.Now()

				summary, err := scanner.New(cfg, store, logger).Scan(cmd.Context())
				if err != nil {
					return err
				}
				resolver := resolve.New(cfg, store, logger)
				report, err := match.New(cfg, store, resolver, logger).RunScan(cmd.Context())
				if err != nil {
					return err
				}
				duration := time.Since(start)

				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromScan(*summary, *report, duration))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %d folders (%d new, %d missing) in %s\n",
					summary.Seen, summary.New, summary.Missing, duration.Round(time.Millisecond))
				if len(summary.SkippedRoots) > 0 {
					fmt.Fprintf(out, "Skipped roots: %s\n", strings.Join(summary.SkippedRoots, ", "))
				}
				fmt.Fprintf(out, "Matching: %d unresolved examined, %d suggested, %d auto-linked\n",
					report.Unresolved, report.Suggested, report.AutoLinked)
				if report.Failed > 0 {
					fmt.Fprintf(out, "Failed proposals: %d (see logs)\n", report.Failed)
				}
				return nil
			})
		},
	}
}
