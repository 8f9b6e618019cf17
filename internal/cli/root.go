// Package cli provides CLI commands for the gate application.
package cli

import (
	gocontext "context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/contentgate/internal/config"
	"github.com/example/contentgate/internal/ctxutil"
	"github.com/example/contentgate/internal/wire"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitBlocked     = 1
	ExitStoreFailed = 2
)

// ExitError carries a process exit code out of a command. Err may be nil when
// the command already printed everything the operator needs.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// globalActorID stores the actor for the current CLI invocation.
var globalActorID string

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// RootCmd builds the gate command tree.
func RootCmd(version string) *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:     "gate",
		Short:   "Content quality gate and lifecycle state machine",
		Version: version,
		Long: `gate checks content items against every quality gate before they move
through the DRAFT -> BODY_READY -> APPROVED -> POSTED lifecycle,
verifies cited sources, and manages conditional passes and category blocks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			wire.SetWorkDir(dir)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dir, "dir", ".", "Workspace directory containing .gate/")
	rootCmd.PersistentFlags().StringVar(&globalActorID, "actor", config.GetEnv("GATE_ACTOR", "operator"), "Actor recorded in stage history")

	rootCmd.AddCommand(InitCmd())
	rootCmd.AddCommand(CheckCmd())
	rootCmd.AddCommand(AdvanceCmd())
	rootCmd.AddCommand(CheckAllCmd())
	rootCmd.AddCommand(DemoteCmd())
	rootCmd.AddCommand(SweepCmd())
	rootCmd.AddCommand(ListBlockedCmd())
	rootCmd.AddCommand(ResolveCmd())
	rootCmd.AddCommand(PassesCmd())
	rootCmd.AddCommand(DaemonCmd())
	rootCmd.AddCommand(VerifySourcesCmd())
	rootCmd.AddCommand(ReviewCmd())
	rootCmd.AddCommand(ItemCmd())
	rootCmd.AddCommand(RulesCmd())

	return rootCmd
}

// services returns the wired services or an error suitable for printing.
func services() (*wire.Services, error) {
	svc, err := wire.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return svc, nil
}
