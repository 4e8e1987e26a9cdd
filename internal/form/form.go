// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package form validates the text fields of the intake form. Validation is
// field-scoped: every failing field is reported, not just the first.
package form

import (
	"errors"
	"regexp"
	"strings"
)

// Field names as they appear on the wire and in the form.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldEventName = "event_name"
)

var (
	// ErrRequired marks a required field left empty.
	ErrRequired = errors.New("required field")
	// ErrFormat marks a field whose value has the wrong shape.
	ErrFormat = errors.New("invalid format")
)

// emailPattern is deliberately permissive: local@domain.tld with a
// two-letter minimum TLD.
var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// Fields holds the user-entered text of one form.
type Fields struct {
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	EventName string `json:"event_name,omitempty" yaml:"event_name,omitempty"`
}

// IsZero reports whether every field is empty.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

// FieldError describes why one field failed.
type FieldError struct {
	Field   string
	Message string
	kind    error
}

func (e *FieldError) Error() string { return e.Message }

// Unwrap returns ErrRequired or ErrFormat.
func (e *FieldError) Unwrap() error { return e.kind }

// Errors is the set of field failures from one validation pass, in form
// order. A nil Errors means the form is valid.
type Errors []*FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// For returns the error for field, or nil.
func (e Errors) For(field string) *FieldError {
	for _, fe := range e {
		if fe.Field == field {
			return fe
		}
	}
	return nil
}

// First returns the first failure in form order, or nil.
func (e Errors) First() *FieldError {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}

// ValidEmail reports whether s matches the accepted email shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validate checks every field and returns all failures, or nil.
func Validate(f Fields) Errors {
	var errs Errors

	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, &FieldError{Field: FieldName, Message: "Name is required", kind: ErrRequired})
	}

	switch {
	case strings.TrimSpace(f.Email) == "":
		errs = append(errs, &FieldError{Field: FieldEmail, Message: "Email is required", kind: ErrRequired})
	case !ValidEmail(f.Email):
		errs = append(errs, &FieldError{Field: FieldEmail, Message: "Invalid email address", kind: ErrFormat})
	}

	// event_name is optional and unconstrained.

	if len(errs) == 0 {
		return nil
	}
	return errs
}
