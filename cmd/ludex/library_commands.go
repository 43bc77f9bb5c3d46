package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ludex/internal/api"
	"ludex/internal/config"
	"ludex/internal/feed"
	"ludex/internal/library"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var searchFlag string
	var limitFlag int
	var offsetFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the unified library view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				entries, err := feed.New(store).Entries(cmd.Context(), feed.Query{
					Type:   feed.EntryType(strings.TrimSpace(typeFlag)),
					Search: searchFlag,
					Limit:  limitFlag,
					Offset: offsetFlag,
				})
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, api.EntriesResponse{Entries: api.FromEntries(entries)})
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					confidence := ""
					if entry.Type == feed.EntrySuggested {
						confidence = fmt.Sprintf("%.0f%%", entry.Confidence*100)
					}
					rows = append(rows, []string{
						entry.ID,
						string(entry.Type),
						entry.DisplayTitle,
						fmt.Sprintf("%d", entry.InstanceCount),
						confidence,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Type", "Title", "Copies", "Confidence"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "Filter by entry type (canonical, suggested, orphan)")
	cmd.Flags().StringVar(&searchFlag, "search", "", "Filter titles by substring")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum entries to show (0 shows all)")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "Entries to skip before showing")
	return cmd
}

func newSuggestionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "Show pending match suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				suggestions, err := feed.New(store).Suggestions(cmd.Context())
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, api.SuggestionsResponse{Suggestions: api.FromSuggestions(suggestions)})
				}

				out := cmd.OutOrStdout()
				if len(suggestions) == 0 {
					fmt.Fprintln(out, "No pending suggestions")
					return nil
				}

				rows := make([][]string, 0, len(suggestions))
				for _, suggestion := range suggestions {
					rows = append(rows, []string{
						fmt.Sprintf("%d", suggestion.Cluster.ID),
						suggestion.Cluster.SuggestedTitle,
						fmt.Sprintf("%.0f%%", suggestion.Cluster.Confidence*100),
						fmt.Sprintf("%d", len(suggestion.Members)),
						suggestion.Members[0].InstancePath,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Cluster", "Title", "Confidence", "Members", "Primary"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
				))
				fmt.Fprintln(out, "Accept with `ludex accept <cluster>`, dismiss with `ludex reject <cluster>`.")
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <canonical-id>",
		Short: "Show one canonical game with its copies and identity links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *library.Store) error {
				id := strings.TrimSpace(args[0])
				game, err := store.Canonical(cmd.Context(), id)
				if err != nil {
					return err
				}
				if game == nil {
					return fmt.Errorf("canonical game %s not found", id)
				}
				instances, err := store.ListLinkedInstances(cmd.Context(), id)
				if err != nil {
					return err
				}
				links, err := store.ListLinks(cmd.Context(), id)
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromCanonicalDetail(game, instances, links))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-14s %s\n", "Title:", game.DisplayTitle)
				fmt.Fprintf(out, "%-14s %s\n", "ID:", game.ID)
				if game.ReleaseDate != "" {
					fmt.Fprintf(out, "%-14s %s\n", "Released:", game.ReleaseDate)
				}
				if game.Developer != "" {
					fmt.Fprintf(out, "%-14s %s\n", "Developer:", game.Developer)
				}
				if game.CoverURL != "" {
					fmt.Fprintf(out, "%-14s %s\n", "Cover:", game.CoverURL)
				}
				printMetadata(cmd, game.Metadata)

				fmt.Fprintln(out)
				if len(instances) == 0 {
					fmt.Fprintln(out, "No linked copies")
				} else {
					rows := make([][]string, 0, len(instances))
					for _, instance := range instances {
						rating := ""
						if instance.Rating != nil {
							rating = fmt.Sprintf("%.1f", *instance.Rating)
						}
						rows = append(rows, []string{
							instance.FolderPath,
							string(instance.Status),
							rating,
							strings.Join(instance.Tags, ", "),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Folder", "Status", "Rating", "Tags"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
					))
				}

				if len(links) > 0 {
					rows := make([][]string, 0, len(links))
					for _, link := range links {
						rows = append(rows, []string{
							string(link.SourceType),
							link.ExternalID,
							link.ExternalURL,
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Source", "External ID", "URL"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}
}

func printMetadata(cmd *cobra.Command, bag map[string]string) {
	if len(bag) == 0 {
		return
	}
	keys := make([]string, 0, len(bag))
	for key := range bag {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := cmd.OutOrStdout()
	for _, key := range keys {
		fmt.Fprintf(out, "%-14s %s\n", key+":", bag[key])
	}
}
