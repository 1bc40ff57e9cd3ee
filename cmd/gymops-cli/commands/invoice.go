package commands

import (
	"errors"
	"fmt"

	"gymops-backend/services/billingsync"

	"github.com/spf13/cobra"
)

var invoiceMemo string

func init() {
	invoiceCmd.Flags().StringVarP(&invoiceMemo, "memo", "m", "Past-due membership balance", "memo line for the invoice")
	rootCmd.AddCommand(invoiceCmd)
}

var invoiceCmd = &cobra.Command{
	Use:   "invoice <member>",
	Short: "Opens an invoice for a member's past-due balance.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invoice, result, err := service.InvoicePastDue(cmd.Context(), args[0], invoiceMemo)
		if errors.Is(err, billingsync.ErrNothingOwed) {
			fmt.Printf("%s is %s, nothing to invoice\n", result.MemberId, result.Status)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf(
			"created invoice %s for member %s: $%d.%02d\n",
			invoice.Id, invoice.MemberId,
			invoice.AmountCents/100, invoice.AmountCents%100,
		)
		return nil
	},
}
