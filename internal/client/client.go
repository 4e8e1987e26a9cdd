// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package client talks to the BEO processing backend. It uploads
// submissions as multipart forms and looks up their processing status,
// authenticating every request with a bearer token.
//
// The client never retries. Retrying is a user action.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/beo-intake/internal/httputil"
	"github.com/pdiddy/beo-intake/pkg/types"
)

const (
	uploadPath = "/api/upload"
	statusPath = "/api/status/"

	defaultUserAgent = "beo-intake/0.1"
)

// Multipart field names expected by the backend.
const (
	fieldName      = "name"
	fieldEmail     = "email"
	fieldEventName = "event_name"
	fieldPDF       = "pdf_file"
)

// Client is the authenticated channel to the backend. Its configuration is
// fixed at construction.
type Client struct {
	baseURL       string
	key           string
	uploadTimeout time.Duration
	statusTimeout time.Duration
	userAgent     string
	http          *http.Client
	log           zerolog.Logger
}

// New builds a Client from cfg. A nil httpClient uses a default client;
// timeouts are applied per request, not on the http.Client. New logs the
// endpoint and whether a key is present, never the key itself.
func New(cfg types.APIConfig, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		key:           strings.TrimSpace(cfg.Key),
		uploadTimeout: cfg.UploadTimeout,
		statusTimeout: cfg.StatusTimeout,
		userAgent:     cfg.UserAgent,
		http:          httpClient,
		log:           log.With().Str("component", "client").Logger(),
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = types.DefaultUploadTimeout
	}
	if c.statusTimeout <= 0 {
		c.statusTimeout = types.DefaultStatusTimeout
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	ev := c.log.Info()
	if c.configError() != nil {
		ev = c.log.Warn()
	}
	ev.Str("endpoint", c.baseURL).
		Bool("api_key_set", c.key != "").
		Int("api_key_length", len(c.key)).
		Msg("backend client configured")

	return c
}

// Endpoint returns the configured base URL.
func (c *Client) Endpoint() string { return c.baseURL }

// Check reports a *ConfigurationError when the base URL or the API key is
// missing, without contacting the backend.
func (c *Client) Check() error { return c.configError() }

func (c *Client) configError() error {
	var missing []string
	if c.baseURL == "" {
		missing = append(missing, "API URL")
	}
	if c.key == "" {
		missing = append(missing, "API key")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Submit uploads req and returns the backend's acknowledgment. The body is
// streamed, so the file is never held in memory whole. The upload is
// bounded by the upload timeout measured from the start of the request.
func (c *Client) Submit(ctx context.Context, req types.SubmissionRequest) (*types.UploadResponse, error) {
	if err := c.configError(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	content, err := req.File.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", req.File.FileName(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	length, err := bodyLength(mw.Boundary(), req)
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("sizing upload body: %w", err)
	}
	go func() {
		pw.CloseWithError(writeSubmission(mw, req, content))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	c.authorize(httpReq)
	// The boundary lives in the writer, so the header must come from it.
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	// A known length keeps the streamed body from going out chunked.
	httpReq.ContentLength = length

	c.log.Debug().
		Str("file", req.File.FileName()).
		Int64("bytes", req.File.Size()).
		Msg("uploading submission")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportError("upload", c.uploadTimeout, err)
	}
	if !httputil.StatusOK(resp.StatusCode) {
		return nil, httpError("upload", resp)
	}
	defer resp.Body.Close()

	var out types.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing upload response: %w", err)
	}
	if !out.Status.Valid() {
		c.log.Warn().Str("status", string(out.Status)).Msg("upload acknowledged with unknown status")
	}

	c.log.Info().
		Str("submission_id", out.SubmissionID).
		Str("status", string(out.Status)).
		Msg("submission accepted")
	return &out, nil
}

// bodyLength returns the exact size of the multipart body writeSubmission
// produces with boundary: the encoded fields and part headers, plus the
// file's declared size.
func bodyLength(boundary string, req types.SubmissionRequest) (int64, error) {
	var n countingWriter
	mw := multipart.NewWriter(&n)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	if err := writeParts(mw, req, nil); err != nil {
		return 0, err
	}
	return int64(n) + req.File.Size(), nil
}

type countingWriter int64

func (w *countingWriter) Write(p []byte) (int, error) {
	*w += countingWriter(len(p))
	return len(p), nil
}

// writeSubmission encodes the multipart body and closes content.
func writeSubmission(mw *multipart.Writer, req types.SubmissionRequest, content io.ReadCloser) error {
	defer content.Close()
	return writeParts(mw, req, content)
}

// writeParts writes the form fields and the pdf_file part, copying content
// into it when non-nil, and closes mw.
func writeParts(mw *multipart.Writer, req types.SubmissionRequest, content io.Reader) error {
	if err := mw.WriteField(fieldName, req.Name); err != nil {
		return err
	}
	if err := mw.WriteField(fieldEmail, req.Email); err != nil {
		return err
	}
	if req.EventName != "" {
		if err := mw.WriteField(fieldEventName, req.EventName); err != nil {
			return err
		}
	}

	// CreateFormFile would label the part application/octet-stream; the
	// backend rejects anything but application/pdf.
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		fieldPDF, quoteEscaper.Replace(req.File.FileName())))
	h.Set("Content-Type", req.File.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if content != nil {
		n, err := io.Copy(part, content)
		if err != nil {
			return fmt.Errorf("copying file content: %w", err)
		}
		if n != req.File.Size() {
			return fmt.Errorf("file %s changed size: read %d bytes, expected %d", req.File.FileName(), n, req.File.Size())
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// CheckStatus fetches the current status of a submission. An ID the
// backend does not know yields *NotFoundError.
func (c *Client) CheckStatus(ctx context.Context, submissionID string) (*types.SubmissionStatus, error) {
	if err := c.configError(); err != nil {
		return nil, err
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return nil, fmt.Errorf("%w: submission ID is required", ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath+url.PathEscape(submissionID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportError("status", c.statusTimeout, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{SubmissionID: submissionID, ServerMessage: httputil.ErrorMessage(resp)}
	}
	if !httputil.StatusOK(resp.StatusCode) {
		return nil, httpError("status", resp)
	}
	defer resp.Body.Close()

	var st types.SubmissionStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("parsing status response: %w", err)
	}
	if st.ID == "" {
		st.ID = submissionID
	}

	c.log.Debug().
		Str("submission_id", submissionID).
		Str("status", string(st.Status)).
		Msg("status checked")
	return &st, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// transportError classifies a failed Do. Cancellation by the caller is
// passed through unchanged so callers can tell abandonment from failure.
func (c *Client) transportError(op string, timeout time.Duration, err error) error {
	switch {
	case httputil.IsCanceled(err):
		return fmt.Errorf("%s abandoned: %w", op, err)
	case httputil.IsTimeout(err):
		c.log.Warn().Str("op", op).Dur("timeout", timeout).Msg("request timed out")
		return &TransportError{Op: op, Kind: KindTimeout, Timeout: timeout, Err: err}
	default:
		c.log.Warn().Err(err).Str("op", op).Msg("request failed")
		return &TransportError{Op: op, Kind: KindNetwork, Err: err}
	}
}

func httpError(op string, resp *http.Response) error {
	msg := httputil.ErrorMessage(resp)
	if msg == "" {
		msg = genericHTTPMessage(resp.StatusCode)
	}
	return &TransportError{Op: op, Kind: KindHTTP, Status: resp.StatusCode, ServerMessage: msg}
}
