// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data exchanged with the BEO processing backend
// and the configuration shared by the CLI and the intake server.
package types

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PDFContentType is the only MIME type accepted for uploads.
const PDFContentType = "application/pdf"

// Status is the backend's processing state for a submission.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether processing has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders states along the processing progression. Completed and
// failed share the top rank; unknown states rank below pending.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	}
	return 0
}

// Supersedes reports whether next may replace s as the latest known state.
// Progressions and repeats are accepted; regressions, sideways moves
// between terminal states, and unknown states are not.
func (s Status) Supersedes(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s.Terminal() {
		return next == s
	}
	return next.Rank() >= s.Rank()
}

// Payload is the binary part of a submission. Open may be called more
// than once; each call returns a fresh reader positioned at the start.
type Payload interface {
	FileName() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// SubmissionRequest is what the intake form sends to the backend.
type SubmissionRequest struct {
	Name      string
	Email     string
	EventName string
	File      Payload
}

// Validate checks the invariants the client relies on before sending:
// a PDF payload must be present. Field formats are the form's concern.
func (r SubmissionRequest) Validate() error {
	if r.File == nil {
		return fmt.Errorf("no PDF file selected")
	}
	if r.File.ContentType() != PDFContentType {
		return fmt.Errorf("file %q has type %q, want %s", r.File.FileName(), r.File.ContentType(), PDFContentType)
	}
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("name and email are required")
	}
	return nil
}

// UploadResponse is the backend's acknowledgment of an accepted upload.
type UploadResponse struct {
	SubmissionID string `json:"submission_id" yaml:"submission_id"`
	Status       Status `json:"status" yaml:"status"`
	StatusURL    string `json:"status_url" yaml:"status_url"`
	Message      string `json:"message" yaml:"message"`
}

// SubmissionStatus is a snapshot of the backend's record for a submission.
// It is only valid as of the time it was fetched.
type SubmissionStatus struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name,omitempty" yaml:"name,omitempty"`
	Email        string     `json:"email,omitempty" yaml:"email,omitempty"`
	EventName    string     `json:"event_name,omitempty" yaml:"event_name,omitempty"`
	Status       Status     `json:"status" yaml:"status"`
	CreatedAt    *Timestamp `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	CompletedAt  *Timestamp `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DownloadURL  string     `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	FileSize     *int64     `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	BEOCount     *int       `json:"beo_count,omitempty" yaml:"beo_count,omitempty"`
}

// Timestamp accepts both RFC 3339 and the zone-less ISO 8601 form the
// backend emits for naive datetimes. Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses s using the layouts the backend is known to emit.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Timestamp) MarshalYAML() (interface{}, error) {
	return t.UTC().Format(time.RFC3339), nil
}
