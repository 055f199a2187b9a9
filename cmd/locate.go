package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-report/internal/county"
)

var locateCmd = &cobra.Command{
	Use:   "locate <address>",
	Short: "Show which appraisal district an address routes to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hint := county.Locate(strings.Join(args, " "))

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Jurisdiction", "Confidence", "Signal"})
		t.AppendRow(table.Row{hint.Jurisdiction, hint.Confidence, hint.Signal})
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
