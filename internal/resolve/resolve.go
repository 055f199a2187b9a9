// Package resolve picks one value per report field from manual, county and
// API inputs and records which input won.
package resolve

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-report/internal/model"
)

// Preference optionally pins a field to one machine source. Manual values
// still take precedence regardless of preference.
type Preference string

// Preferences.
const (
	PreferAuto   Preference = "auto"
	PreferAPI    Preference = "api"
	PreferCounty Preference = "county"
)

// ParsePreference validates a preference string. Empty means auto.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PreferAuto:
		return PreferAuto, nil
	case PreferAPI, PreferCounty:
		return p, nil
	case "attom":
		return PreferAPI, nil
	default:
		return "", eris.Errorf("unknown source preference %q (valid: auto, api, county)", s)
	}
}

// legacySentinel is what older clients submit for an empty field.
const legacySentinel = "n/a"

// IsManualValue reports whether a manual entry should override machine
// sources: non-empty and not a "not available" placeholder.
func IsManualValue(v string) bool {
	t := strings.TrimSpace(v)
	if t == "" {
		return false
	}
	l := strings.ToLower(t)
	return l != model.NotAvailable && l != legacySentinel
}

// Resolve applies the precedence manual > county > api > none to one field.
// It is a pure function of its arguments.
func Resolve(spec model.FieldSpec, manual string, pref Preference, api, county model.SourceRecord) model.ResolvedField {
	out := model.ResolvedField{
		FieldID:  spec.ID,
		Label:    spec.Label,
		Category: spec.Category,
	}

	if IsManualValue(manual) {
		v := strings.TrimSpace(manual)
		return withValue(out, spec, v, model.SourceManual, "")
	}

	if pref != PreferAPI {
		if v, ok := county.Lookup(spec.SourcePaths.County); ok {
			return withValue(out, spec, v, model.SourceCounty, county.Provenance)
		}
	}
	if pref != PreferCounty {
		if v, ok := api.Lookup(spec.SourcePaths.API); ok {
			return withValue(out, spec, v, model.SourceAPI, api.Provenance)
		}
	}

	out.SourceUsed = model.SourceNone
	out.DisplayValue = model.NotAvailable
	return out
}

func withValue(out model.ResolvedField, spec model.FieldSpec, v string, src model.Source, provenance string) model.ResolvedField {
	out.Value = &v
	out.SourceUsed = src
	out.Provenance = provenance
	out.DisplayValue = Format(spec, v)
	return out
}
