// Package render turns an assembled report into a downloadable document.
package render

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-report/internal/model"
)

// Renderer writes a report in one output format.
type Renderer interface {
	ContentType() string
	Extension() string
	Render(w io.Writer, r *model.Report) error
}

// RenderError is a failure to produce the document. The report itself is
// still valid and can be returned to the caller.
type RenderError struct {
	Format string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %s: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Kind is the error kind reported to HTTP clients.
func (e *RenderError) Kind() string { return "render" }

var registry = map[string]func() Renderer{
	"text":     func() Renderer { return Text{} },
	"txt":      func() Renderer { return Text{} },
	"markdown": func() Renderer { return Markdown{} },
	"md":       func() Renderer { return Markdown{} },
	"json":     func() Renderer { return JSON{} },
	"pdf":      func() Renderer { return PDF{Fetch: HTTPImages(imageTimeout)} },
}

// imageTimeout bounds the download of a remote image for embedding.
const imageTimeout = 15 * time.Second

// DefaultFormat is used when a caller names none.
const DefaultFormat = "text"

// New returns the renderer for a format name. Empty means DefaultFormat.
func New(format string) (Renderer, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = DefaultFormat
	}
	mk, ok := registry[f]
	if !ok {
		return nil, eris.Errorf("render: unknown format %q (valid: %s)", format, strings.Join(Formats(), ", "))
	}
	return mk(), nil
}

// Formats lists the accepted format names.
func Formats() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Write renders into a buffer and copies it to w only on success, so a
// failed render never leaves a partial document behind.
func Write(w io.Writer, r Renderer, rep *model.Report) error {
	if rep == nil {
		return &RenderError{Format: r.Extension(), Err: eris.New("nil report")}
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, rep); err != nil {
		return &RenderError{Format: r.Extension(), Err: err}
	}
	if _, err := buf.WriteTo(w); err != nil {
		return eris.Wrap(err, "render: write output")
	}
	return nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Filename suggests a download name for the report.
func Filename(rep *model.Report, r Renderer) string {
	slug := "property"
	if rep != nil {
		if s := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(rep.Address), "-"), "-"); s != "" {
			slug = s
		}
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return "property-report-" + slug + "." + r.Extension()
}

// sourceLabel names where a resolved value came from.
func sourceLabel(f model.ResolvedField) string {
	switch f.SourceUsed {
	case model.SourceManual:
		return "Manual entry"
	case model.SourceNone:
		return "-"
	default:
		if f.Provenance != "" {
			return f.Provenance
		}
		return string(f.SourceUsed)
	}
}

func statusLine(name string, s model.SourceStatus) string {
	switch s.State {
	case model.StatusOK:
		if s.Provenance != "" {
			return fmt.Sprintf("%s: retrieved from %s", name, s.Provenance)
		}
		return name + ": retrieved"
	case model.StatusSkipped:
		return name + ": skipped"
	default:
		return name + ": " + s.String()
	}
}

func manualEditLines(rep *model.Report) []string {
	lines := make([]string, 0, len(rep.ManualEdits))
	for _, id := range rep.ManualEdits {
		f := rep.Field(id)
		if f == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", f.Label, f.DisplayValue))
	}
	return lines
}

func imageLine(img *model.ImageReference) string {
	if img == nil {
		return "No property image available"
	}
	ref := img.Reference
	if strings.HasPrefix(ref, "data:") {
		mediaType, _, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ";")
		ref = fmt.Sprintf("embedded %s (%d bytes)", mediaType, len(img.Reference))
	}
	if img.Source == model.ImageUpload {
		return "Uploaded image: " + ref
	}
	return "Image from API: " + ref
}

const countyUnavailableNote = "Note: County property data was not available during report generation. " +
	"Report uses API data and any manual entries provided."

const noManualEdits = "None - all values from available sources"
