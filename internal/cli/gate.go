package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/contentgate/internal/ports/primary"
)

// CheckCmd returns the check command.
func CheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [item-id]",
		Short: "Run every gate for a transition without changing the item",
		Long: `Evaluate transition, caption, asset, rule-sync and provenance gates for
moving an item to the target stage. Exits 0 when admitted and 1 when blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			target, _ := cmd.Flags().GetString("target-stage")

			svc, err := services()
			if err != nil {
				return err
			}
			report, err := svc.Gate.Check(ctx, primary.CheckRequest{ItemID: args[0], TargetStage: target})
			if err != nil {
				return fmt.Errorf("failed to check item: %w", err)
			}

			printReport(cmd.OutOrStdout(), report)
			if !report.Admitted {
				return &ExitError{Code: ExitBlocked}
			}
			return nil
		},
	}
	cmd.Flags().String("target-stage", "", "Stage to evaluate the item for (required)")
	cmd.MarkFlagRequired("target-stage")
	return cmd
}

// AdvanceCmd returns the advance command.
func AdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance [item-id]",
		Short: "Check an item and move it to the target stage when admitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			target, _ := cmd.Flags().GetString("target-stage")
			reason, _ := cmd.Flags().GetString("reason")

			svc, err := services()
			if err != nil {
				return err
			}
			resp, err := svc.Gate.Advance(ctx, primary.AdvanceRequest{
				ItemID:      args[0],
				TargetStage: target,
				Reason:      reason,
			})
			if err != nil {
				return fmt.Errorf("failed to advance item: %w", err)
			}

			out := cmd.OutOrStdout()
			printReport(out, resp.Report)
			if !resp.Transitioned {
				return &ExitError{Code: ExitBlocked}
			}
			fmt.Fprintf(out, "✓ %s moved %s -> %s\n", args[0], resp.FromStage, resp.Report.TargetStage)
			return nil
		},
	}
	cmd.Flags().String("target-stage", "", "Stage to move the item to (required)")
	cmd.Flags().String("reason", "", "Reason recorded in stage history")
	cmd.MarkFlagRequired("target-stage")
	return cmd
}

// CheckAllCmd returns the check-all command.
func CheckAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-all",
		Short: "Check every item at a stage concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			stage, _ := cmd.Flags().GetString("stage")
			target, _ := cmd.Flags().GetString("target-stage")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			svc, err := services()
			if err != nil {
				return err
			}
			reports, err := svc.Gate.CheckAll(ctx, primary.CheckAllRequest{
				Stage:       stage,
				TargetStage: target,
				Concurrency: concurrency,
			})
			if err != nil {
				return fmt.Errorf("failed to check items: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintf(out, "No items at %s.\n", stage)
				return nil
			}
			blocked := 0
			for _, r := range reports {
				printReport(out, r)
				fmt.Fprintln(out)
				if !r.Admitted {
					blocked++
				}
			}
			fmt.Fprintf(out, "%d checked, %d admitted, %d blocked\n", len(reports), len(reports)-blocked, blocked)
			if blocked > 0 {
				return &ExitError{Code: ExitBlocked}
			}
			return nil
		},
	}
	cmd.Flags().String("stage", "", "Check items currently at this stage (required)")
	cmd.Flags().String("target-stage", "", "Stage to evaluate for (defaults to the next stage)")
	cmd.Flags().Int("concurrency", 0, "Items checked in parallel (defaults to check_concurrency)")
	cmd.MarkFlagRequired("stage")
	return cmd
}

// DemoteCmd returns the demote command.
func DemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demote [item-id]",
		Short: "Move an item back to an earlier stage",
		Long:  "Manual demotion for rework. POSTED items cannot be demoted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			to, _ := cmd.Flags().GetString("to")
			reason, _ := cmd.Flags().GetString("reason")

			svc, err := services()
			if err != nil {
				return err
			}
			if err := svc.Content.Demote(ctx, primary.DemoteRequest{
				ItemID:  args[0],
				ToStage: to,
				Reason:  reason,
			}); err != nil {
				return fmt.Errorf("failed to demote item: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s demoted to %s\n", args[0], to)
			return nil
		},
	}
	cmd.Flags().String("to", "", "Stage to demote to (required)")
	cmd.Flags().String("reason", "", "Reason recorded in stage history")
	cmd.MarkFlagRequired("to")
	return cmd
}
