package main

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"ludex/internal/api"
	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, system checks, and library statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				running := daemonRunning(cfg)
				checks := preflight.RunAll(cmd.Context(), cfg)
				stats, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				violations, err := store.CheckIntegrity(cmd.Context())
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, api.DaemonStatus{
						Running:      running,
						DBPath:       cfg.DatabasePath(),
						LockFilePath: cfg.LockPath(),
						Stats:        api.FromHealthSummary(stats),
						Checks:       api.FromPreflight(checks),
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "%s%-*s %s\n", checkIndent, checkLabelWidth, "Running:", yesNo(running))
				fmt.Fprintf(out, "%s%-*s %s\n", checkIndent, checkLabelWidth, "Database:", cfg.DatabasePath())
				fmt.Fprintf(out, "%s%-*s %s\n", checkIndent, checkLabelWidth, "Lock file:", cfg.LockPath())
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("System Checks", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, check := range checks {
					fmt.Fprintln(out, renderCheckLine(check.Name, check.Passed, check.Detail, colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Library", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := [][]string{
					{"Instances", fmt.Sprintf("%d", stats.Instances)},
					{"Active", fmt.Sprintf("%d", stats.Active)},
					{"Missing", fmt.Sprintf("%d", stats.Missing)},
					{"Linked", fmt.Sprintf("%d", stats.Linked)},
					{"Orphans", fmt.Sprintf("%d", stats.Orphans)},
					{"Canonical games", fmt.Sprintf("%d", stats.Canonicals)},
					{"Identity links", fmt.Sprintf("%d", stats.Links)},
					{"Suggested clusters", fmt.Sprintf("%d", stats.Suggested)},
					{"Accepted clusters", fmt.Sprintf("%d", stats.Accepted)},
					{"Rejected clusters", fmt.Sprintf("%d", stats.Rejected)},
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Metric", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				if len(violations) > 0 {
					fmt.Fprintln(out)
					for _, line := range renderSectionHeader("Integrity", colorize) {
						fmt.Fprintln(out, line)
					}
					shown := violations
					if len(shown) > 5 {
						shown = shown[:5]
					}
					for _, violation := range shown {
						fmt.Fprintln(out, renderCheckLine(violation.Kind, false, violation.Detail, colorize))
					}
					if rest := len(violations) - len(shown); rest > 0 {
						fmt.Fprintf(out, "%sand %d more\n", checkIndent, rest)
					}
				}
				return nil
			})
		},
	}
}

// daemonRunning reports whether another process holds the daemon lock. The
// probe takes and immediately releases the lock when it is free.
func daemonRunning(cfg *config.Config) bool {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return false
	}
	if locked {
		_ = lock.Unlock()
		return false
	}
	return true
}
