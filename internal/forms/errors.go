package forms

import (
	"sort"
	"strings"
)

// ValidationError captures field level validation issues that callers can
// surface next to the offending input. It never reaches the network.
type ValidationError struct {
	FieldErrors map[string]string
	order       []string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := v.fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Message returns the first recorded message, suitable for a single-line display.
func (v *ValidationError) Message() string {
	if !v.HasErrors() {
		return ""
	}
	return v.FieldErrors[v.fields()[0]]
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error. The first message per field wins.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
	v.order = append(v.order, field)
}

// fields returns field names in insertion order, falling back to sorted
// order for values built as literals.
func (v *ValidationError) fields() []string {
	if len(v.order) == len(v.FieldErrors) {
		return v.order
	}
	keys := make([]string, 0, len(v.FieldErrors))
	for k := range v.FieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// orNil keeps the nil-interface contract: no issues means a nil error.
func (v *ValidationError) orNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}
