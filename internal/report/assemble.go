// Package report assembles resolved fields into a categorized property
// report and drives the source adapters that feed it.
package report

import (
	"strings"
	"time"

	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/resolve"
)

// Input is everything Assemble needs. Records are consumed as-is.
type Input struct {
	Address     string
	Manual      map[string]string
	Preferences map[string]resolve.Preference
	API         model.SourceRecord
	County      model.SourceRecord
	Route       model.CountyRoute
	// UploadedImage is a URL or data URL supplied by the caller.
	UploadedImage string
	// GeneratedAt defaults to the current time.
	GeneratedAt time.Time
}

// Assemble resolves every schema field once and groups the results by
// category in declared order. It cannot fail.
func Assemble(s *model.Schema, in Input) *model.Report {
	byCategory := make(map[string][]model.ResolvedField, len(s.Categories))
	manualEdits := []string{}

	for _, spec := range s.Fields {
		pref := in.Preferences[spec.ID]
		if pref == "" {
			pref = resolve.PreferAuto
		}
		rf := resolve.Resolve(spec, in.Manual[spec.ID], pref, in.API, in.County)
		if rf.SourceUsed == model.SourceManual {
			manualEdits = append(manualEdits, spec.ID)
		}
		byCategory[spec.Category] = append(byCategory[spec.Category], rf)
	}

	sections := make([]model.Section, 0, len(s.Categories))
	for _, c := range s.Categories {
		fields := byCategory[c]
		if len(fields) == 0 {
			continue
		}
		sections = append(sections, model.Section{Category: c, Fields: fields})
	}

	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	return &model.Report{
		Address:  strings.TrimSpace(in.Address),
		Sections: sections,
		SourceStatus: model.Statuses{
			API:    model.StatusOf(in.API),
			County: model.StatusOf(in.County),
		},
		County:      in.Route,
		Image:       selectImage(s.ImagePaths, in.UploadedImage, in.API),
		ManualEdits: manualEdits,
		GeneratedAt: generated,
	}
}

// selectImage prefers the uploaded image, then the first API photo path
// with a value.
func selectImage(paths []model.Path, uploaded string, api model.SourceRecord) *model.ImageReference {
	if u := strings.TrimSpace(uploaded); u != "" {
		return &model.ImageReference{Reference: u, Source: model.ImageUpload}
	}
	for _, p := range paths {
		if v, ok := api.Lookup(model.PathSet{p}); ok {
			return &model.ImageReference{Reference: v, Source: model.ImageAPI}
		}
	}
	return nil
}
