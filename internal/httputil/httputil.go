// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the backend client and
// the web front end.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is read for a message.
const maxErrorBody = 64 << 10

// errorBody covers the error shapes the backend produces: {"detail": ...}
// from explicit HTTP errors, {"message": ...} from some proxies, and
// {"error": ..., "detail": ...} from the global exception handler. Detail
// may also be a list of validation problems.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type validationProblem struct {
	Msg string `json:"msg"`
}

// ErrorMessage extracts a human-readable message from an error response
// body. It returns "" when the body has no usable detail or message field.
// The body is drained and closed.
func ErrorMessage(resp *http.Response) string {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)
	if err != nil {
		return ""
	}
	return MessageFromBody(data)
}

// MessageFromBody is ErrorMessage for an already-read body.
func MessageFromBody(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	if msg := detailText(body.Detail); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	return ""
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var problems []validationProblem
	if err := json.Unmarshal(raw, &problems); err == nil {
		var msgs []string
		for _, p := range problems {
			if m := strings.TrimSpace(p.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// IsTimeout reports whether err came from a deadline: a context deadline
// or a net.Error timeout from the transport.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsCanceled reports whether err came from the caller cancelling.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// StatusOK reports whether code is a 2xx status.
func StatusOK(code int) bool {
	return code >= 200 && code < 300
}
