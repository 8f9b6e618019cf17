package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// RulesCmd returns the rules command.
func RulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the rule registry",
	}

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List generation rules and keyword categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			svc, err := services()
			if err != nil {
				return err
			}
			set, err := svc.Rules.Describe(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registry version %d (%s)\n\n", set.Version, set.Source)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RULE\tKIND\tCURRENT\tHASH\tDESCRIPTION")
			fmt.Fprintln(w, "----\t----\t-------\t----\t-----------")
			for _, r := range set.Rules {
				hash := r.Hash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Kind, yesNo(r.Current), hash, r.Description)
			}
			w.Flush()

			fmt.Fprintf(out, "\nKeyword categories: %s\n", strings.Join(set.Categories, ", "))
			return nil
		},
	})
	return rulesCmd
}
