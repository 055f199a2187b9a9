package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-report/internal/model"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List report fields and where each source keeps them",
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, err := loadSchema(cfg)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Label", "Category", "API", "County", "Format"})
		for _, f := range sch.Fields {
			t.AppendRow(table.Row{f.ID, f.Label, f.Category, paths(f.SourcePaths.API), paths(f.SourcePaths.County), f.Formatter})
		}
		t.Render()
		return nil
	},
}

func paths(ps model.PathSet) string {
	if ps.Empty() {
		return "-"
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return strings.Join(out, " + ")
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
