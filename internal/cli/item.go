package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/contentgate/internal/ports/primary"
)

// ItemCmd returns the item command.
func ItemCmd() *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Import and inspect content items",
	}

	importCmd := &cobra.Command{
		Use:   "import [manifest.json]",
		Short: "Create or update an item from a manifest (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}

			svc, err := services()
			if err != nil {
				return err
			}
			result, err := svc.Content.ImportManifest(ctx, data)
			if err != nil {
				return fmt.Errorf("failed to import manifest: %w", err)
			}

			verb := "Updated"
			if result.Created {
				verb = "Created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s (revision %d, stage %s)\n", verb, result.ItemID, result.Revision, result.Stage)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [item-id]",
		Short: "Show an item with its captions, assets and sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return err
			}
			item, err := svc.Content.GetItem(ctx, args[0])
			if err != nil {
				return fmt.Errorf("item not found: %w", err)
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			stage, _ := cmd.Flags().GetString("stage")
			category, _ := cmd.Flags().GetString("category")
			limit, _ := cmd.Flags().GetInt("limit")

			svc, err := services()
			if err != nil {
				return err
			}
			items, err := svc.Content.ListItems(ctx, primary.ContentFilters{
				Stage:    stage,
				Category: category,
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTAGE\tSAFETY\tCATEGORY\tREV\tUPDATED")
			fmt.Fprintln(w, "--\t-----\t------\t--------\t---\t-------")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					it.ID,
					it.Stage,
					it.SafetyClass,
					orDash(it.Category),
					it.Revision,
					it.UpdatedAt,
				)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().String("stage", "", "Filter by stage")
	listCmd.Flags().String("category", "", "Filter by category")
	listCmd.Flags().Int("limit", 0, "Maximum items (0 = all)")

	historyCmd := &cobra.Command{
		Use:   "history [item-id]",
		Short: "Show an item's stage changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return err
			}
			changes, err := svc.Content.History(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, "No stage changes recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tFROM\tTO\tACTOR\tREASON")
			fmt.Fprintln(w, "----\t----\t--\t-----\t------")
			for _, c := range changes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ChangedAt, c.FromStage, c.ToStage, orDash(c.Actor), orDash(c.Reason))
			}
			w.Flush()
			return nil
		},
	}

	decisionsCmd := &cobra.Command{
		Use:   "decisions [item-id]",
		Short: "Show recorded gate decisions for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			limit, _ := cmd.Flags().GetInt("limit")

			svc, err := services()
			if err != nil {
				return err
			}
			decisions, err := svc.Content.Decisions(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to read decisions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(decisions) == 0 {
				fmt.Fprintln(out, "No decisions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tREV\tTARGET\tRESULT\tCODES")
			fmt.Fprintln(w, "----\t---\t------\t------\t-----")
			for _, d := range decisions {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", d.DecidedAt, d.Revision, d.TargetStage, marker(d.Admitted), joinOrDash(d.Codes))
			}
			w.Flush()
			return nil
		},
	}
	decisionsCmd.Flags().Int("limit", 20, "Maximum decisions")

	itemCmd.AddCommand(importCmd)
	itemCmd.AddCommand(showCmd)
	itemCmd.AddCommand(listCmd)
	itemCmd.AddCommand(historyCmd)
	itemCmd.AddCommand(decisionsCmd)
	return itemCmd
}

func printItem(w io.Writer, item *primary.ContentItem) {
	fmt.Fprintf(w, "Item: %s\n", item.ID)
	fmt.Fprintf(w, "Stage: %s\n", item.Stage)
	fmt.Fprintf(w, "Safety: %s\n", item.SafetyClass)
	fmt.Fprintf(w, "Category: %s\n", orDash(item.Category))
	fmt.Fprintf(w, "Provenance: %s\n", item.Provenance)
	fmt.Fprintf(w, "Revision: %d\n", item.Revision)
	if item.PostedAt != "" {
		fmt.Fprintf(w, "Posted: %s\n", item.PostedAt)
	}
	fmt.Fprintf(w, "Claims: names=%s symptoms=%s severity=%s\n",
		joinOrDash(item.ClaimNames), joinOrDash(item.ClaimSymptoms), orDash(item.ClaimSeverity))

	platforms := make([]string, 0, len(item.Captions))
	for p := range item.Captions {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	fmt.Fprintln(w, "\nCaptions:")
	for _, p := range platforms {
		fmt.Fprintf(w, "  [%s] %s\n", p, item.Captions[p])
	}

	fmt.Fprintln(w, "\nAssets:")
	for _, a := range item.Assets {
		fmt.Fprintf(w, "  %-6s %s %dx%d %d bytes rule=%s\n", a.Kind, a.Path, a.Width, a.Height, a.Bytes, orDash(a.RuleName))
	}

	fmt.Fprintln(w, "\nSources:")
	for _, s := range item.Sources {
		fmt.Fprintf(w, "  [%s] %s\n", orDash(s.Grade), s.URL)
	}
}
