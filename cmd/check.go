package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/folio/internal/content"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan every locale and report header problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		store := newStore(c, newLogger(c))
		out := cmd.OutOrStdout()
		if !store.Exists() {
			fmt.Fprintf(out, "⚠ Content directory %s does not exist\n", store.Root())
		}

		var errs, warns int
		for _, loc := range store.Locales() {
			docs, diags := store.Scan(loc)
			fmt.Fprintf(out, "%s: %d document(s)\n", loc, len(docs))
			for _, d := range diags {
				mark := "⚠"
				if d.Severity == content.SeverityError {
					mark = "✗"
					errs++
				} else {
					warns++
				}
				fmt.Fprintf(out, "  %s %s: %s\n", mark, d.Path, d.Message)
			}
		}
		if errs > 0 {
			return fmt.Errorf("%d file(s) could not be indexed (%d warning(s))", errs, warns)
		}
		fmt.Fprintf(out, "✓ Content OK (%d warning(s))\n", warns)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
