// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package client

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRequest is returned when a request fails the client's own
// checks and is never sent.
var ErrInvalidRequest = errors.New("invalid submission request")

// ConfigurationError reports missing connection settings. It is returned by
// every operation before any network activity. The message names which
// settings are absent but never their values.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "backend is not configured: missing " + strings.Join(e.Missing, " and ")
}

// TransportKind classifies a failed exchange with the backend.
type TransportKind string

const (
	KindTimeout TransportKind = "timeout"
	KindHTTP    TransportKind = "http"
	KindNetwork TransportKind = "network"
)

// TransportError is a failed exchange with the backend: a timeout, a
// non-2xx response, or a connection-level failure.
type TransportError struct {
	// Op is the operation that failed ("upload" or "status").
	Op   string
	Kind TransportKind

	// Status is the HTTP status code for KindHTTP.
	Status int

	// ServerMessage is the backend's detail/message for KindHTTP, or a
	// generic message naming the status code when the body had none.
	ServerMessage string

	// Timeout is the bound that expired for KindTimeout.
	Timeout time.Duration

	Err error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
	case KindHTTP:
		return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.Status, e.ServerMessage)
	default:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError is returned by CheckStatus when the backend does not know
// the submission ID.
type NotFoundError struct {
	SubmissionID  string
	ServerMessage string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("submission %s not found", e.SubmissionID)
}

// genericHTTPMessage is used when an error response carries no message.
func genericHTTPMessage(status int) string {
	return fmt.Sprintf("Request failed with status code %d", status)
}
