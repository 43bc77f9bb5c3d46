package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/resolve"
)

func newAcceptCommand(ctx *commandContext) *cobra.Command {
	var canonicalFlag string

	cmd := &cobra.Command{
		Use:   "accept <cluster-id>",
		Short: "Accept a suggested match cluster",
		Long: "Link every member of a suggested cluster to a canonical game.\n" +
			"Without --canonical the cluster's suggested target is used; when the\n" +
			"cluster has none, a new canonical game is created from its members.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clusterID, err := parseClusterID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				resolver := resolve.New(cfg, store, ctx.cliLogger())
				if err := resolver.Accept(cmd.Context(), clusterID, canonicalFlag); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted cluster %d\n", clusterID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&canonicalFlag, "canonical", "", "Link members to this existing canonical game")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <cluster-id>",
		Short: "Reject a suggested match cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clusterID, err := parseClusterID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				resolver := resolve.New(cfg, store, ctx.cliLogger())
				if err := resolver.Reject(cmd.Context(), clusterID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected cluster %d; members return to the orphan pool\n", clusterID)
				return nil
			})
		},
	}
}

func newPromoteCommand(ctx *commandContext) *cobra.Command {
	var titleFlag string

	cmd := &cobra.Command{
		Use:   "promote <folder-path>",
		Short: "Promote an orphan folder to its own canonical game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				resolver := resolve.New(cfg, store, ctx.cliLogger())
				game, err := resolver.PromoteOrphan(cmd.Context(), args[0], titleFlag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s to canonical %q (%s)\n",
					strings.TrimSpace(args[0]), game.DisplayTitle, game.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&titleFlag, "title", "", "Display title for the new canonical game")
	return cmd
}

func newUnmergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unmerge <folder-path>",
		Short: "Detach a folder from its canonical game or suggested clusters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				resolver := resolve.New(cfg, store, ctx.cliLogger())
				if err := resolver.Unmerge(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unmerged %s\n", strings.TrimSpace(args[0]))
				return nil
			})
		},
	}
}

func newRateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <folder-path> <rating>",
		Short: "Rate a library copy from 0 to 10, or clear with `-`",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			value := strings.TrimSpace(args[1])

			var rating *float64
			if value != "-" && !strings.EqualFold(value, "clear") {
				parsed, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("invalid rating %q: expected a number or `-`", args[1])
				}
				rating = &parsed
			}

			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				if err := store.SetInstanceRating(cmd.Context(), path, rating); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if rating == nil {
					fmt.Fprintf(out, "Cleared rating for %s\n", path)
				} else {
					fmt.Fprintf(out, "Rated %s %.1f/10\n", path, *rating)
				}
				return nil
			})
		},
	}
}

func parseClusterID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid cluster id %q", arg)
	}
	return id, nil
}
