// Package schema loads the ordered report field schema.
package schema

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-report/internal/model"
)

//go:embed fields.yaml
var defaultSchema []byte

type document struct {
	Report struct {
		Categories []string          `yaml:"categories"`
		ImagePaths []string          `yaml:"image_paths"`
		Fields     []model.FieldSpec `yaml:"fields"`
	} `yaml:"report"`
}

// Default returns the built-in report schema.
func Default() (*model.Schema, error) {
	return Parse(defaultSchema)
}

// Load reads a schema from path, or returns the built-in schema when path is empty.
func Load(path string) (*model.Schema, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a schema document.
func Parse(data []byte) (*model.Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "schema: parse")
	}
	if len(doc.Report.Fields) == 0 {
		return nil, eris.New("schema: no fields defined")
	}

	images := make([]model.Path, 0, len(doc.Report.ImagePaths))
	for _, p := range doc.Report.ImagePaths {
		images = append(images, model.Path(p).Normalize())
	}

	s, err := model.NewSchema(doc.Report.Categories, doc.Report.Fields, images)
	if err != nil {
		return nil, eris.Wrap(err, "schema: validate")
	}
	return s, nil
}
