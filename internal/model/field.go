package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// NotAvailable is the display value for a field with no resolved value.
const NotAvailable = "not available"

// Formatter selects how a resolved value is turned into display text.
type Formatter string

// Supported formatters.
const (
	FormatIdentity Formatter = "identity"
	FormatMoney    Formatter = "money"
	FormatDate     Formatter = "date"
)

// Valid reports whether f is a known formatter. The empty formatter is
// treated as identity.
func (f Formatter) Valid() bool {
	switch f {
	case FormatIdentity, FormatMoney, FormatDate, "":
		return true
	default:
		return false
	}
}

// Path is a dotted lookup expression into a flattened source record,
// e.g. "assessment.assessedValue" or "school.elementary.0.schoolName".
type Path string

var indexRe = regexp.MustCompile(`\[(\d+)\]`)

// Normalize rewrites bracket indexes into dotted segments so that
// "a.b[0].c" and "a.b.0.c" address the same value.
func (p Path) Normalize() Path {
	s := strings.TrimSpace(string(p))
	s = indexRe.ReplaceAllString(s, ".$1")
	s = strings.Trim(s, ".")
	return Path(s)
}

// PathSet is one or more paths into the same source. When several paths are
// given, their present values are joined with a single space.
type PathSet []Path

// UnmarshalYAML accepts either a scalar path or a sequence of paths.
func (ps *PathSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*ps = nil
			return nil
		}
		*ps = PathSet{Path(node.Value).Normalize()}
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := node.Decode(&raw); err != nil {
			return eris.Wrap(err, "model: decode path list")
		}
		out := make(PathSet, 0, len(raw))
		for _, r := range raw {
			if p := Path(r).Normalize(); p != "" {
				out = append(out, p)
			}
		}
		*ps = out
		return nil
	default:
		return eris.Errorf("model: path must be a string or list, got yaml kind %d", node.Kind)
	}
}

// Empty reports whether the set holds no paths (the source never supplies the field).
func (ps PathSet) Empty() bool { return len(ps) == 0 }

// SourcePaths locates a field in each machine source.
type SourcePaths struct {
	API    PathSet `yaml:"api" json:"api,omitempty"`
	County PathSet `yaml:"county" json:"county,omitempty"`
}

// FieldSpec describes one report field and where each source keeps it.
type FieldSpec struct {
	ID          string      `yaml:"id" json:"id"`
	Label       string      `yaml:"label" json:"label"`
	Category    string      `yaml:"category" json:"category"`
	SourcePaths SourcePaths `yaml:"sources" json:"source_paths"`
	Formatter   Formatter   `yaml:"format" json:"format,omitempty"`
	Unit        string      `yaml:"unit" json:"unit,omitempty"`
}

// Schema is the ordered, indexed set of report fields.
type Schema struct {
	Categories []string
	Fields     []FieldSpec
	ImagePaths []Path
	byID       map[string]*FieldSpec
}

// NewSchema indexes fields and validates the definition: IDs must be unique
// and non-empty, formatters known, and every category declared.
func NewSchema(categories []string, fields []FieldSpec, imagePaths []Path) (*Schema, error) {
	s := &Schema{
		Categories: categories,
		Fields:     fields,
		ImagePaths: imagePaths,
		byID:       make(map[string]*FieldSpec, len(fields)),
	}

	declared := make(map[string]bool, len(categories))
	for _, c := range categories {
		if declared[c] {
			return nil, eris.Errorf("model: duplicate category %q", c)
		}
		declared[c] = true
	}

	for i := range s.Fields {
		f := &s.Fields[i]
		if f.ID == "" {
			return nil, eris.Errorf("model: field %d has no id", i)
		}
		if _, dup := s.byID[f.ID]; dup {
			return nil, eris.Errorf("model: duplicate field id %q", f.ID)
		}
		if !f.Formatter.Valid() {
			return nil, eris.Errorf("model: field %q has unknown format %q", f.ID, f.Formatter)
		}
		if f.Formatter == "" {
			f.Formatter = FormatIdentity
		}
		if !declared[f.Category] {
			return nil, eris.Errorf("model: field %q uses undeclared category %q", f.ID, f.Category)
		}
		if f.Label == "" {
			f.Label = f.ID
		}
		s.byID[f.ID] = f
	}
	return s, nil
}

// ByID returns the field spec with the given id, or nil if not found.
func (s *Schema) ByID(id string) *FieldSpec {
	return s.byID[id]
}

// IDs returns every field id in schema order.
func (s *Schema) IDs() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.ID
	}
	return out
}
