package model

import (
	"context"
	"errors"
	"strings"
)

// Source identifies which input produced a resolved value.
type Source string

// Resolution sources.
const (
	SourceManual Source = "manual"
	SourceAPI    Source = "api"
	SourceCounty Source = "county"
	SourceNone   Source = "none"
)

// ErrorKind classifies why a source produced no data.
type ErrorKind string

// Record failure kinds.
const (
	KindTimeout     ErrorKind = "timeout"
	KindAdapter     ErrorKind = "adapter_error"
	KindSkipped     ErrorKind = "skipped"
	KindUnavailable ErrorKind = "unavailable"
)

// SourceRecord is the raw output of one source adapter for one address.
// Values are keyed by normalized path; an absent key is an absent value.
type SourceRecord struct {
	OK         bool            `json:"ok"`
	Values     map[Path]string `json:"values,omitempty"`
	Provenance string          `json:"provenance,omitempty"`
	ErrorKind  ErrorKind       `json:"error_kind,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Succeeded builds an OK record. Blank values are dropped.
func Succeeded(provenance string, values map[Path]string) SourceRecord {
	clean := make(map[Path]string, len(values))
	for k, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		clean[k.Normalize()] = v
	}
	return SourceRecord{OK: true, Values: clean, Provenance: provenance}
}

// Failed builds a failure record of the given kind.
func Failed(kind ErrorKind, message string) SourceRecord {
	return SourceRecord{ErrorKind: kind, Message: message}
}

// Skipped builds the record for a source the caller opted out of.
func Skipped(reason string) SourceRecord {
	return SourceRecord{ErrorKind: KindSkipped, Message: reason}
}

// FromError converts an adapter error into a failure record. Deadline errors
// become timeouts.
func FromError(err error) SourceRecord {
	if err == nil {
		return Failed(KindAdapter, "unknown error")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failed(KindTimeout, err.Error())
	}
	return Failed(KindAdapter, err.Error())
}

// IsSkipped reports whether the source was deliberately not queried.
func (r SourceRecord) IsSkipped() bool {
	return !r.OK && r.ErrorKind == KindSkipped
}

// Lookup returns the value stored under every path of ps. Multiple paths are
// joined by a space; the result is absent when no path has a value or the
// record is not OK.
func (r SourceRecord) Lookup(ps PathSet) (string, bool) {
	if !r.OK || len(ps) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		v, ok := r.Values[p.Normalize()]
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}
