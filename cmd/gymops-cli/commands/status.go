package commands

import (
	"fmt"
	"os"

	"gymops-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <member>",
	Short: "Prints the billing status of a member (by id, name or email).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := service.CheckMember(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Member", "Name", "Status", "Past Due", "Checked At"})
		t.AppendRow(table.Row{
			result.MemberId,
			result.DisplayName,
			result.Status,
			fmt.Sprintf("$%d.%02d", result.PastDueCents/100, result.PastDueCents%100),
			result.CheckedAt.In(timezone.Location).Format("2006-01-02 15:04"),
		})
		t.Render()

		if result.Stale {
			fmt.Fprintln(os.Stderr, "warning: the portal was unreachable, this is the last cached answer")
		}
		return nil
	},
}
