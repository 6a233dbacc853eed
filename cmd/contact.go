package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/folio/internal/contact"
	"github.com/KaramelBytes/folio/internal/utils"
)

// cliAddress is the rate limit key used for submissions sent from the CLI.
const cliAddress = "cli"

var (
	contactName    string
	contactEmail   string
	contactTopic   string
	contactMessage string
	contactLocale  string
	contactCompany string
)

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Send a contact submission through the gate",
	Long: `Runs one submission through the same pipeline as POST /api/contact:
rate limit, honeypot, validation, then the configured relay (or the local
inbox when no relay is set). Useful to check relay settings end to end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		loc, err := resolveLocale(c, contactLocale)
		if err != nil {
			return err
		}
		log := newLogger(c)
		defer func() { _ = log.Sync() }()

		gate, closeGate, err := newGate(c, log)
		if err != nil {
			return err
		}
		defer func() { _ = closeGate() }()

		res := gate.Submit(cmd.Context(), cliAddress, contact.Submission{
			Name:    contactName,
			Email:   contactEmail,
			Topic:   contactTopic,
			Message: contactMessage,
			Company: contactCompany,
			Locale:  loc,
		})
		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		if !res.OK {
			return fmt.Errorf("submission rejected: %s (status %d)", res.Kind, res.HTTPStatus())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contactCmd)
	contactCmd.Flags().StringVar(&contactName, "name", "", "sender name")
	contactCmd.Flags().StringVar(&contactEmail, "email", "", "sender email")
	contactCmd.Flags().StringVar(&contactTopic, "topic", "", "optional topic")
	contactCmd.Flags().StringVarP(&contactMessage, "message", "m", "", "message body")
	contactCmd.Flags().StringVarP(&contactLocale, "locale", "l", "", "locale of the submission (default is default_locale)")
	contactCmd.Flags().StringVar(&contactCompany, "company", "", "honeypot field; leave empty")
	_ = contactCmd.Flags().MarkHidden("company")
}
