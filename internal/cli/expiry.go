package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/contentgate/internal/ports/primary"
)

// SweepCmd returns the sweep-expirations command.
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-expirations",
		Short: "Warn about, expire and block conditional passes as of now",
		Long: `Run one expiry sweep. Passes close to expiry produce one warning per day;
expired passes without a verified replacement block their category for new
admissions. Exits 2 when the store cannot be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}
			report, err := svc.Expiry.ProcessExpirations(ctx)
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: fmt.Errorf("sweep failed: %w", err)}
			}
			printSweep(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printSweep(w io.Writer, r *primary.SweepReport) {
	fmt.Fprintf(w, "Sweep %s\n", r.Day)
	for _, p := range r.Warnings {
		fmt.Fprintf(w, "  %s %s (%s) expires in %d day(s): %s\n",
			color.New(color.FgYellow).Sprint("warn"), p.ID, p.Category, p.DaysRemaining, p.OriginalSource)
	}
	for _, p := range r.Expired {
		fmt.Fprintf(w, "  %s %s (%s): %s\n", color.New(color.FgRed).Sprint("expired"), p.ID, p.Category, p.OriginalSource)
	}
	for _, c := range r.NewlyBlockedCategories {
		fmt.Fprintf(w, "  %s %s\n", blockedLabel(), c)
	}
	for _, c := range r.UnblockedCategories {
		fmt.Fprintf(w, "  unblocked %s\n", c)
	}
	fmt.Fprintf(w, "%d warning(s), %d expired, %d newly blocked, %d notification(s)\n",
		len(r.Warnings), len(r.Expired), len(r.NewlyBlockedCategories), r.Notified)
}

// ListBlockedCmd returns the list-blocked command.
func ListBlockedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-blocked",
		Short: "List categories blocked for new admissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return err
			}
			blocks, err := svc.Expiry.ListBlocks(ctx)
			if err != nil {
				return fmt.Errorf("failed to list blocks: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(blocks) == 0 {
				fmt.Fprintln(out, "No blocked categories.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSCOPE\tBLOCKED\tREASON")
			fmt.Fprintln(w, "--------\t-----\t-------\t------")
			for _, b := range blocks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Category, b.Scope, b.BlockedAt, b.Reason)
			}
			w.Flush()
			return nil
		},
	}
}

// ResolveCmd returns the resolve command.
func ResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [url]",
		Short: "Re-verify a source and resolve the conditional passes that cite it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return err
			}
			result, err := svc.Expiry.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", marker(true), result.URL, result.Status)
			if len(result.Resolved) > 0 {
				fmt.Fprintf(out, "✓ Resolved: %s\n", joinOrDash(result.Resolved))
			}
			if len(result.AlreadyResolved) > 0 {
				fmt.Fprintf(out, "  Already resolved: %s\n", joinOrDash(result.AlreadyResolved))
			}
			for _, c := range result.UnblockedCategory {
				fmt.Fprintf(out, "✓ Category %s unblocked\n", c)
			}
			return nil
		},
	}
}

// PassesCmd returns the passes command.
func PassesCmd() *cobra.Command {
	passesCmd := &cobra.Command{
		Use:   "passes",
		Short: "Inspect conditional passes",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conditional passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			status, _ := cmd.Flags().GetString("status")
			category, _ := cmd.Flags().GetString("category")
			unresolved, _ := cmd.Flags().GetBool("unresolved")

			svc, err := services()
			if err != nil {
				return err
			}
			passes, err := svc.Expiry.ListPasses(ctx, primary.PassFilters{
				Status:     status,
				Category:   category,
				Unresolved: unresolved,
			})
			if err != nil {
				return fmt.Errorf("failed to list passes: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(passes) == 0 {
				fmt.Fprintln(out, "No conditional passes found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tSTATUS\tDAYS\tRESOLVED\tSCORE\tSOURCE")
			fmt.Fprintln(w, "--\t--------\t------\t----\t--------\t-----\t------")
			for _, p := range passes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					p.ID,
					p.Category,
					p.Status,
					p.DaysRemaining,
					yesNo(p.Resolved),
					orDash(p.MatchScore),
					p.OriginalSource,
				)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().String("status", "", "Filter by status (ACTIVE|WARNING|EXPIRED)")
	listCmd.Flags().String("category", "", "Filter by category")
	listCmd.Flags().Bool("unresolved", false, "Only passes not yet resolved")

	passesCmd.AddCommand(listCmd)
	return passesCmd
}

// DaemonCmd returns the daemon command.
func DaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the expiry sweep on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := services()
			if err != nil {
				return &ExitError{Code: ExitStoreFailed, Err: err}
			}

			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				if interval, err = svc.Config.SweepEvery(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			job := svc.NewSweepJob(interval, func(r *primary.SweepReport) {
				printSweep(out, r)
			})

			ctx, stop := signal.NotifyContext(NewContext(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "Sweeping every %s; Ctrl-C to stop\n", interval)
			job.Start()
			<-ctx.Done()
			job.Stop()
			return nil
		},
	}
	cmd.Flags().Duration("interval", time.Duration(0), "Time between sweeps (defaults to sweep_interval)")
	return cmd
}
