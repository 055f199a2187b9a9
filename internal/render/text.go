package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/property-report/internal/model"
)

// Text renders a plain-text report with one table per section.
type Text struct{}

// ContentType implements Renderer.
func (Text) ContentType() string { return "text/plain; charset=utf-8" }

// Extension implements Renderer.
func (Text) Extension() string { return "txt" }

// Render implements Renderer.
func (Text) Render(w io.Writer, rep *model.Report) error {
	p := &printer{w: w}
	p.line("PROPERTY REPORT")
	p.line("Address: %s", rep.Address)
	p.line("Generated: %s", rep.GeneratedAt.Format("1/2/2006 15:04 MST"))
	if rep.SourceStatus.County.State == model.StatusOK && rep.SourceStatus.County.Provenance != "" {
		p.line("Data Source: %s", rep.SourceStatus.County.Provenance)
	}
	p.line("")

	for _, sec := range rep.Sections {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetTitle(sec.Category)
		t.AppendHeader(table.Row{"Field", "Value", "Source"})
		for _, f := range sec.Fields {
			t.AppendRow(table.Row{f.Label, f.DisplayValue, sourceLabel(f)})
		}
		p.line("%s", t.Render())
		p.line("")
	}

	p.line("DATA SOURCES & STATUS")
	p.line("  %s", statusLine("API data", rep.SourceStatus.API))
	p.line("  %s", statusLine("County data", rep.SourceStatus.County))
	if rep.County.Jurisdiction != "" {
		p.line("  County routing: %s (%s confidence)", rep.County.Jurisdiction, rep.County.Confidence)
	}
	p.line("")

	p.line("MANUAL EDITS")
	edits := manualEditLines(rep)
	if len(edits) == 0 {
		p.line("  %s", noManualEdits)
	}
	for _, e := range edits {
		p.line("  - %s", e)
	}

	if rep.SourceStatus.County.State == model.StatusFailed {
		p.line("")
		p.line("%s", countyUnavailableNote)
	}

	p.line("")
	p.line("PROPERTY IMAGE")
	p.line("  %s", imageLine(rep.Image))
	return p.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
