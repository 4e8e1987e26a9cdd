// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	valid := []string{
		"a@b.co",
		"ana.lopez+beo@events.example.com",
		"FIRST_LAST%x@Sub-Domain.Example.ORG",
		"x-y@host.museum",
	}
	invalid := []string{
		"not-an-email",
		"a@b",
		"a@b.c",
		"@example.com",
		"ana@",
		"ana lopez@example.com",
		"ana@example.c0m",
		" a@b.co",
		"",
	}
	for _, s := range valid {
		assert.True(t, ValidEmail(s), "expected %q to be accepted", s)
		assert.Nil(t, Validate(Fields{Name: "Ana", Email: s}).For(FieldEmail))
	}
	for _, s := range invalid {
		assert.False(t, ValidEmail(s), "expected %q to be rejected", s)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		fields   Fields
		wantErrs map[string]error
	}{
		{
			name:   "all valid without event",
			fields: Fields{Name: "Ana", Email: "ana@example.com"},
		},
		{
			name:   "event name is unconstrained",
			fields: Fields{Name: "Ana", Email: "ana@example.com", EventName: "   "},
		},
		{
			name:     "whitespace name",
			fields:   Fields{Name: " \t ", Email: "ana@example.com"},
			wantErrs: map[string]error{FieldName: ErrRequired},
		},
		{
			name:     "empty email",
			fields:   Fields{Name: "Ana"},
			wantErrs: map[string]error{FieldEmail: ErrRequired},
		},
		{
			name:     "malformed email",
			fields:   Fields{Name: "Ana", Email: "a@b"},
			wantErrs: map[string]error{FieldEmail: ErrFormat},
		},
		{
			name:     "every field reported together",
			fields:   Fields{Email: "not-an-email"},
			wantErrs: map[string]error{FieldName: ErrRequired, FieldEmail: ErrFormat},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.fields)
			if len(tt.wantErrs) == 0 {
				assert.Nil(t, errs)
				return
			}
			require.Len(t, errs, len(tt.wantErrs))
			for field, kind := range tt.wantErrs {
				fe := errs.For(field)
				require.NotNil(t, fe, "missing error for %s", field)
				assert.True(t, errors.Is(fe, kind), "%s: got %v", field, fe)
			}
		})
	}
}

func TestErrorsOrderAndMessages(t *testing.T) {
	errs := Validate(Fields{})
	require.Len(t, errs, 2)
	assert.Equal(t, FieldName, errs.First().Field)
	assert.Equal(t, "Name is required; Email is required", errs.Error())

	errs = Validate(Fields{Name: "Ana", Email: "nope"})
	assert.Equal(t, "Invalid email address", errs.First().Message)
}
