package model

import "time"

// ResolvedField is the outcome of resolving one FieldSpec.
type ResolvedField struct {
	FieldID      string  `json:"field_id"`
	Label        string  `json:"label"`
	Category     string  `json:"category"`
	Value        *string `json:"value"`
	DisplayValue string  `json:"display_value"`
	SourceUsed   Source  `json:"source_used"`
	Provenance   string  `json:"provenance,omitempty"`
}

// Section groups resolved fields under one category.
type Section struct {
	Category string          `json:"category"`
	Fields   []ResolvedField `json:"fields"`
}

// StatusState summarizes a source's participation in a report.
type StatusState string

// Status states. Skipped and failed are never collapsed.
const (
	StatusOK      StatusState = "ok"
	StatusFailed  StatusState = "failed"
	StatusSkipped StatusState = "skipped"
)

// SourceStatus is the per-source status shown at the top of a report.
type SourceStatus struct {
	State      StatusState `json:"state"`
	Kind       ErrorKind   `json:"kind,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Provenance string      `json:"provenance,omitempty"`
}

// String renders "ok", "skipped" or "failed: <reason>".
func (s SourceStatus) String() string {
	if s.State == StatusFailed {
		return string(StatusFailed) + ": " + s.Reason
	}
	return string(s.State)
}

// StatusOf derives a SourceStatus from a record.
func StatusOf(r SourceRecord) SourceStatus {
	switch {
	case r.OK:
		return SourceStatus{State: StatusOK, Provenance: r.Provenance}
	case r.IsSkipped():
		return SourceStatus{State: StatusSkipped, Kind: KindSkipped, Reason: r.Message}
	default:
		reason := r.Message
		if reason == "" {
			reason = string(r.ErrorKind)
		}
		return SourceStatus{State: StatusFailed, Kind: r.ErrorKind, Reason: reason}
	}
}

// Statuses holds the status of each machine source.
type Statuses struct {
	API    SourceStatus `json:"api"`
	County SourceStatus `json:"county"`
}

// ImageSource tells where a report image came from.
type ImageSource string

// Image sources.
const (
	ImageUpload ImageSource = "upload"
	ImageAPI    ImageSource = "api"
)

// ImageReference points at a property photo: a URL or a data URL.
type ImageReference struct {
	Reference string      `json:"reference"`
	Source    ImageSource `json:"source"`
}

// CountyRoute records which jurisdiction the county lookup targeted.
type CountyRoute struct {
	Selection    string `json:"selection"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Confidence   string `json:"confidence,omitempty"`
}

// Report is the assembled, per-request property report.
type Report struct {
	Address      string          `json:"address"`
	Sections     []Section       `json:"sections"`
	SourceStatus Statuses        `json:"source_status"`
	County       CountyRoute     `json:"county"`
	Image        *ImageReference `json:"image,omitempty"`
	ManualEdits  []string        `json:"manual_edits"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Field returns the resolved field with the given id, or nil.
func (r *Report) Field(id string) *ResolvedField {
	for i := range r.Sections {
		for j := range r.Sections[i].Fields {
			if r.Sections[i].Fields[j].FieldID == id {
				return &r.Sections[i].Fields[j]
			}
		}
	}
	return nil
}

// FieldCount returns the number of resolved fields across all sections.
func (r *Report) FieldCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Fields)
	}
	return n
}
