package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/folio/internal/inbox"
	"github.com/KaramelBytes/folio/internal/utils"
)

var (
	inboxLimit int
	inboxJSON  bool
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List submissions accepted locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if c.InboxPath == "" {
			return errors.New("inbox_path is not set; local submissions are only logged")
		}
		db, err := inbox.Open(c.InboxPath)
		if err != nil {
			return fmt.Errorf("open inbox: %w", err)
		}
		defer db.Close()

		msgs, err := db.List(cmd.Context(), inboxLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if inboxJSON {
			b, err := utils.PrettyJSON(msgs)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(msgs) == 0 {
			fmt.Fprintln(out, "(inbox empty)")
			return nil
		}
		total, err := db.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Showing %d of %d submission(s)\n", len(msgs), total)
		for _, m := range msgs {
			fmt.Fprintf(out, "%s  %s <%s>", m.SubmittedAt.Format("2006-01-02 15:04"), m.Name, m.Email)
			if m.Topic != "" {
				fmt.Fprintf(out, " [%s]", m.Topic)
			}
			fmt.Fprintf(out, " %s\n", m.ID)
			fmt.Fprintf(out, "    %s\n", utils.TruncateWords(strings.TrimSpace(m.Message), 24))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inboxCmd)
	inboxCmd.Flags().IntVarP(&inboxLimit, "limit", "n", 20, "maximum number of submissions (0 for all)")
	inboxCmd.Flags().BoolVar(&inboxJSON, "json", false, "print JSON")
}
