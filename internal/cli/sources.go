package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/contentgate/internal/ports/primary"
)

// VerifySourcesCmd returns the verify-sources command.
func VerifySourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-sources [item-id]",
		Short: "Check an item's cited sources and resolve its category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return err
			}
			v, err := svc.SourceTrust.VerifySources(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to verify sources: %w", err)
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tGRADE\tSTATUS\tDETAIL")
			fmt.Fprintln(w, "---\t-----\t------\t------")
			for _, c := range v.Checks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.URL, c.Grade, c.Status, orDash(c.Detail))
			}
			w.Flush()

			fmt.Fprintf(out, "\n%s: %s %s", v.Category, v.Outcome, v.Code)
			if v.MatchScore != "" {
				fmt.Fprintf(out, " (match %s)", v.MatchScore)
			}
			fmt.Fprintf(out, "\n%s\n", v.Message)
			if p := v.ConditionalPass; p != nil {
				fmt.Fprintf(out, "Conditional pass %s expires %s (%d days)\n", p.ID, p.ExpiresAt, p.DaysRemaining)
			}
			if v.CategoryBlocked {
				fmt.Fprintf(out, "%s category %s is blocked for new admissions\n", blockedLabel(), v.Category)
			}
			if v.AlreadyLogged {
				fmt.Fprintln(out, "Today's verification for this category was already logged.")
			}
			if v.Outcome == "FAIL" {
				return &ExitError{Code: ExitBlocked}
			}
			return nil
		},
	}
}

// ReviewCmd returns the review command.
func ReviewCmd() *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Manage the manual source review queue",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List review queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			category, _ := cmd.Flags().GetString("category")
			all, _ := cmd.Flags().GetBool("all")

			svc, err := services()
			if err != nil {
				return err
			}
			entries, err := svc.SourceTrust.ListReview(ctx, primary.ReviewFilters{
				Category: category,
				OpenOnly: !all,
			})
			if err != nil {
				return fmt.Errorf("failed to list review queue: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Review queue is empty.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tCODE\tURL\tDETAIL\tRESOLVED")
			fmt.Fprintln(w, "--\t--------\t----\t---\t------\t--------")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID,
					e.Category,
					e.Code,
					orDash(e.URL),
					orDash(e.Detail),
					yesNo(e.Resolved),
				)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().String("category", "", "Filter by category")
	listCmd.Flags().Bool("all", false, "Include resolved entries")

	resolveCmd := &cobra.Command{
		Use:   "resolve [entry-id]",
		Short: "Close a review queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			note, _ := cmd.Flags().GetString("note")

			svc, err := services()
			if err != nil {
				return err
			}
			if err := svc.SourceTrust.ResolveReview(ctx, args[0], note); err != nil {
				return fmt.Errorf("failed to resolve review entry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Review entry %s resolved\n", args[0])
			return nil
		},
	}
	resolveCmd.Flags().String("note", "", "What was done (required)")
	resolveCmd.MarkFlagRequired("note")

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show the daily verification log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			category, _ := cmd.Flags().GetString("category")
			limit, _ := cmd.Flags().GetInt("limit")

			svc, err := services()
			if err != nil {
				return err
			}
			entries, err := svc.SourceTrust.VerificationLog(ctx, category, limit)
			if err != nil {
				return fmt.Errorf("failed to read verification log: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No verifications logged.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tCATEGORY\tOUTCOME\tCODE\tSCORE")
			fmt.Fprintln(w, "---\t--------\t-------\t----\t-----")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Day, e.Category, e.Outcome, e.Code, orDash(e.MatchScore))
			}
			w.Flush()
			return nil
		},
	}
	logCmd.Flags().String("category", "", "Filter by category")
	logCmd.Flags().Int("limit", 30, "Maximum entries")

	reviewCmd.AddCommand(listCmd)
	reviewCmd.AddCommand(resolveCmd)
	reviewCmd.AddCommand(logCmd)
	return reviewCmd
}
