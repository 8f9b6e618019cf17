package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/contentgate/internal/config"
	"github.com/example/contentgate/internal/db"
	"github.com/example/contentgate/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the gate workspace",
		Long:  `Create .gate/config.json with defaults and the SQLite database with the required schema.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			demo, _ := cmd.Flags().GetBool("demo")
			dir := wire.WorkDir()
			out := cmd.OutOrStdout()

			configPath := filepath.Join(dir, config.Dir, "config.json")
			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(out, "Config already exists at %s\n", configPath)
			} else {
				if err := config.SaveConfig(dir, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Config written to %s\n", configPath)
			}

			cfg, err := config.LoadOrDefault(dir)
			if err != nil {
				return err
			}
			dbPath := cfg.DBPath
			if dbPath == "" {
				dbPath = config.DefaultDBPath(dir)
			}

			database, err := db.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()
			fmt.Fprintf(out, "✓ Database initialized at %s\n", dbPath)

			if demo {
				if err := db.SeedFixtures(database); err != nil {
					return fmt.Errorf("failed to seed demo items: %w", err)
				}
				fmt.Fprintln(out, "✓ Demo items 0001-carrot and 0002-grapes added at BODY_READY")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  gate item import manifest.json")
			fmt.Fprintln(out, "  gate check <item-id> --target-stage APPROVED")
			return nil
		},
	}
	cmd.Flags().Bool("demo", false, "Seed two demonstration items")
	return cmd
}
