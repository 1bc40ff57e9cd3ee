package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep <members...>",
	Short: "Checks the billing status of a batch of members and refreshes the cache.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outcomes, err := service.Sweep(cmd.Context(), args)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Member", "Status", "Past Due", "Note"})

		for _, outcome := range outcomes {
			if outcome.Err != nil {
				t.AppendRow(table.Row{outcome.Ref, "?", "", outcome.Err.Error()})
				continue
			}
			note := ""
			if outcome.Result.Stale {
				note = "cached"
			}
			t.AppendRow(table.Row{
				outcome.Ref,
				outcome.Result.Status,
				fmt.Sprintf("$%d.%02d", outcome.Result.PastDueCents/100, outcome.Result.PastDueCents%100),
				note,
			})
		}
		t.Render()

		return err
	},
}
