package render

import (
	"encoding/json"
	"io"

	"github.com/sells-group/property-report/internal/model"
)

// JSON renders the report as indented JSON.
type JSON struct{}

// ContentType implements Renderer.
func (JSON) ContentType() string { return "application/json" }

// Extension implements Renderer.
func (JSON) Extension() string { return "json" }

// Render implements Renderer.
func (JSON) Render(w io.Writer, rep *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
