// Package form holds the typed field abstractions shared by the admin and
// attempt screens: a labelled value, its selectable options and field-level
// validation errors.
package form

import (
	"sort"
	"strings"
)

// Option is one selectable value of a Field.
type Option[T comparable] struct {
	Label string `json:"label"`
	Value T      `json:"value"`
}

// Field is a labelled, optionally constrained form value.
// A Field with Options only accepts one of the option values.
type Field[T comparable] struct {
	Name     string      `json:"name"`
	Label    string      `json:"label"`
	Value    T           `json:"value"`
	Options  []Option[T] `json:"options,omitempty"`
	Required bool        `json:"required"`
	Disabled bool        `json:"disabled,omitempty"`
}

// Select builds a Field whose options are values, labelled with labelOf.
func Select[T comparable](name, label string, value T, values []T, labelOf func(T) string) Field[T] {
	opts := make([]Option[T], 0, len(values))
	for _, v := range values {
		opts = append(opts, Option[T]{Label: labelOf(v), Value: v})
	}
	return Field[T]{Name: name, Label: label, Value: value, Options: opts}
}

// Set returns a copy of the field holding v.
func (f Field[T]) Set(v T) Field[T] {
	f.Value = v
	return f
}

// IsZero reports whether the field holds the zero value of T.
func (f Field[T]) IsZero() bool {
	var zero T
	return f.Value == zero
}

// HasOption reports whether v is one of the field's options.
func (f Field[T]) HasOption(v T) bool {
	for _, o := range f.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Validate checks the required flag and option membership, recording failures in errs.
func (f Field[T]) Validate(errs *Errors) {
	if f.IsZero() {
		if f.Required {
			errs.Add(f.Name, f.Label+" is required")
		}
		return
	}
	if len(f.Options) > 0 && !f.HasOption(f.Value) {
		errs.Add(f.Name, f.Label+" has an invalid value")
	}
}

// FieldError is a single failing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field errors; a nil or empty Errors means the form is valid.
type Errors []FieldError

func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Require records an error when value is blank.
func (e *Errors) Require(field, label, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, label+" is required")
	}
}

// Merge appends all errors of other.
func (e *Errors) Merge(other Errors) {
	*e = append(*e, other...)
}

func (e Errors) Empty() bool {
	return len(e) == 0
}

// Has reports whether field has at least one error.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Map groups the messages by field name.
func (e Errors) Map() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, fe := range e {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Err returns nil for an empty set so callers can use the usual error check.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for _, fe := range e {
		fields = append(fields, fe.Field+": "+fe.Message)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, "; ")
}
