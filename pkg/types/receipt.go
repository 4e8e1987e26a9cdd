// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Receipt is the local record of an upload the backend accepted, kept so
// the user can look submissions up again later.
type Receipt struct {
	SubmissionID string    `json:"submission_id" yaml:"submission_id"`
	Name         string    `json:"name" yaml:"name"`
	Email        string    `json:"email" yaml:"email"`
	EventName    string    `json:"event_name,omitempty" yaml:"event_name,omitempty"`
	FileName     string    `json:"file_name" yaml:"file_name"`
	FileSize     int64     `json:"file_size" yaml:"file_size"`
	StatusURL    string    `json:"status_url" yaml:"status_url"`
	SubmittedAt  time.Time `json:"submitted_at" yaml:"submitted_at"`

	// Status is the most recent state seen for the submission, starting
	// with the one in the upload acknowledgment.
	Status       Status    `json:"status" yaml:"status"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	DownloadURL  string    `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}
