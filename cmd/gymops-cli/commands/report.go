package commands

import (
	"fmt"

	"gymops-backend/lib/secrets"
	"gymops-backend/services/billingsync"

	"github.com/spf13/cobra"
)

var reportEmail bool

func init() {
	reportCmd.Flags().BoolVar(&reportEmail, "email", false, "email the report to the configured recipients")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Renders the cached past-due members as a table.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := service.PastDueReport(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(report)

		if !reportEmail {
			return nil
		}
		if len(config.Report.Recipients) == 0 {
			return fmt.Errorf("no report recipients configured")
		}
		password, ok := provider.Get(secrets.SmtpPassword)
		if !ok {
			return fmt.Errorf("the %s secret is missing", secrets.SmtpPassword)
		}

		return service.EmailReport(cmd.Context(), billingsync.SmtpConfig{
			Server:       config.Smtp.Server,
			Port:         config.Smtp.Port,
			EmailAddress: config.Smtp.EmailAddress,
			Password:     password,
		}, config.Report.Recipients, report)
	},
}
