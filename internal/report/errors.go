package report

import "fmt"

// ValidationError is a request the service refuses before any source is
// queried. It is the only error Build returns.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "report: " + e.Message
	}
	return fmt.Sprintf("report: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
