package render

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/property-report/internal/model"
)

// Markdown renders the report as a markdown document.
type Markdown struct{}

// ContentType implements Renderer.
func (Markdown) ContentType() string { return "text/markdown; charset=utf-8" }

// Extension implements Renderer.
func (Markdown) Extension() string { return "md" }

// Render implements Renderer.
func (Markdown) Render(w io.Writer, rep *model.Report) error {
	p := &printer{w: w}
	p.line("# Property Report")
	p.line("")
	p.line("**Address:** %s  ", rep.Address)
	p.line("**Generated:** %s", rep.GeneratedAt.Format("1/2/2006 15:04 MST"))
	p.line("")

	for _, sec := range rep.Sections {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Field", "Value", "Source"})
		for _, f := range sec.Fields {
			t.AppendRow(table.Row{f.Label, f.DisplayValue, sourceLabel(f)})
		}
		p.line("## %s", sec.Category)
		p.line("")
		p.line("%s", t.RenderMarkdown())
		p.line("")
	}

	p.line("## Data Sources & Status")
	p.line("")
	p.line("- %s", statusLine("API data", rep.SourceStatus.API))
	p.line("- %s", statusLine("County data", rep.SourceStatus.County))
	p.line("")

	p.line("## Manual Edits")
	p.line("")
	edits := manualEditLines(rep)
	if len(edits) == 0 {
		p.line("%s", noManualEdits)
	}
	for _, e := range edits {
		p.line("- %s", e)
	}

	if rep.SourceStatus.County.State == model.StatusFailed {
		p.line("")
		p.line("> %s", countyUnavailableNote)
	}

	p.line("")
	p.line("## Property Image")
	p.line("")
	if rep.Image != nil && rep.Image.Source == model.ImageAPI {
		p.line("![Property image](%s)", rep.Image.Reference)
	} else {
		p.line("%s", imageLine(rep.Image))
	}
	return p.err
}
