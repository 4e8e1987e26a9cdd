// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/beo-intake/internal/backendtest"
	"github.com/pdiddy/beo-intake/internal/pdffile"
	"github.com/pdiddy/beo-intake/pkg/types"
)

const fakePDF = "%PDF-1.4 fake packet"

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(types.APIConfig{URL: baseURL, Key: backendtest.Token}, nil, zerolog.Nop())
}

func validRequest() types.SubmissionRequest {
	return types.SubmissionRequest{
		Name:      "Ana Lopez",
		Email:     "ana@example.com",
		EventName: "Spring Gala",
		File:      pdffile.FromBytes("packet.pdf", types.PDFContentType, []byte(fakePDF)),
	}
}

func TestSubmitSendsMultipartWithBearer(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	resp, err := c.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, b.Uploads(), 1)
	up := b.Uploads()[0]
	assert.Equal(t, resp.SubmissionID, up.ID)
	assert.Equal(t, types.StatusPending, resp.Status)
	assert.Equal(t, "/api/status/"+up.ID, resp.StatusURL)
	assert.NotEmpty(t, resp.Message)

	assert.Equal(t, "Bearer "+backendtest.Token, up.Authorization)
	assert.True(t, strings.HasPrefix(up.RequestContentType, "multipart/form-data; boundary="),
		"content type must carry the writer's boundary, got %q", up.RequestContentType)
	assert.Equal(t, "Ana Lopez", up.Name)
	assert.Equal(t, "ana@example.com", up.Email)
	assert.Equal(t, "Spring Gala", up.EventName)
	assert.Equal(t, "packet.pdf", up.FileName)
	assert.Equal(t, types.PDFContentType, up.FileContentType)
	assert.Equal(t, fakePDF, string(up.Data))
}

func TestSubmitSendsContentLength(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	req := validRequest()
	data := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 1<<20)...)
	req.File = pdffile.FromBytes(`menu "final".pdf`, types.PDFContentType, data)

	_, err := c.Submit(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, b.Uploads(), 1)
	up := b.Uploads()[0]
	assert.Empty(t, up.TransferEncoding, "upload must not be sent chunked")
	assert.Equal(t, int64(up.BodyBytes), up.ContentLength)
	assert.Greater(t, up.ContentLength, int64(len(data)))
	assert.Equal(t, data, up.Data)
}

func TestBodyLengthMatchesEncodedBody(t *testing.T) {
	for _, event := range []string{"", "Spring Gala"} {
		req := validRequest()
		req.EventName = event

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		want, err := bodyLength(mw.Boundary(), req)
		require.NoError(t, err)

		content, err := req.File.Open()
		require.NoError(t, err)
		require.NoError(t, writeSubmission(mw, req, content))
		assert.Equal(t, int64(buf.Len()), want, "event %q", event)
	}
}

func TestSubmitFailsWhenFileIsShorterThanDeclared(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	req := validRequest()
	req.File = pdffile.New("packet.pdf", types.PDFContentType, 4096, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(fakePDF)), nil
	})

	_, err := c.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, b.Uploads())
}

func TestSubmitOmitsEmptyEventName(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	req := validRequest()
	req.EventName = ""
	_, err := c.Submit(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, b.Uploads(), 1)
	assert.False(t, b.Uploads()[0].HasEventName)
}

func TestSubmitRefusesInvalidRequest(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	noFile := validRequest()
	noFile.File = nil
	_, err := c.Submit(context.Background(), noFile)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	notPDF := validRequest()
	notPDF.File = pdffile.FromBytes("notes.txt", "text/plain", []byte("hi"))
	_, err = c.Submit(context.Background(), notPDF)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, 0, b.UploadCalls())
}

func TestMissingConfigurationFailsFast(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	tests := []struct {
		name    string
		cfg     types.APIConfig
		missing []string
	}{
		{"no url", types.APIConfig{Key: "k"}, []string{"API URL"}},
		{"no key", types.APIConfig{URL: ts.URL}, []string{"API key"}},
		{"blank key", types.APIConfig{URL: ts.URL, Key: "   "}, []string{"API key"}},
		{"neither", types.APIConfig{}, []string{"API URL", "API key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.cfg, ts.Client(), zerolog.Nop())

			_, err := c.Submit(context.Background(), validRequest())
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.missing, cfgErr.Missing)

			_, err = c.CheckStatus(context.Background(), "abc")
			require.ErrorAs(t, err, &cfgErr)
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, New(types.APIConfig{URL: "http://x", Key: "k"}, nil, zerolog.Nop()).Check())

	err := New(types.APIConfig{URL: "http://x"}, nil, zerolog.Nop()).Check()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"API key"}, cfgErr.Missing)
}

func TestNewLogsDiagnosticsWithoutSecret(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	New(types.APIConfig{URL: "https://beo.example.com/", Key: "super-secret-token"}, nil, log)

	out := buf.String()
	assert.Contains(t, out, `"endpoint":"https://beo.example.com"`)
	assert.Contains(t, out, `"api_key_set":true`)
	assert.Contains(t, out, `"api_key_length":18`)
	assert.NotContains(t, out, "super-secret-token")
}

func TestSubmitHTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		detail     string
		wantStatus int
		wantMsg    string
	}{
		{"server detail", http.StatusInternalServerError, "boom", 500, "boom"},
		{"rate limited", http.StatusTooManyRequests, "Rate limit exceeded. Maximum 5 submissions per hour.", 429, "Rate limit exceeded. Maximum 5 submissions per hour."},
		{"no detail", http.StatusBadGateway, "", 502, "Request failed with status code 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := backendtest.New(t)
			b.Set(func(b *backendtest.Backend) {
				b.FailUpload = tt.status
				b.FailDetail = tt.detail
			})
			c := newClient(t, b.URL)

			_, err := c.Submit(context.Background(), validRequest())
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, KindHTTP, te.Kind)
			assert.Equal(t, tt.wantStatus, te.Status)
			assert.Equal(t, tt.wantMsg, te.ServerMessage)
			// No automatic retry, even for 429.
			assert.Equal(t, 1, b.UploadCalls())
		})
	}
}

func TestSubmitUnauthorized(t *testing.T) {
	b := backendtest.New(t)
	c := New(types.APIConfig{URL: b.URL, Key: "wrong"}, nil, zerolog.Nop())

	_, err := c.Submit(context.Background(), validRequest())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.Equal(t, "Invalid API key", te.ServerMessage)
}

func TestSubmitTimeout(t *testing.T) {
	b := backendtest.New(t)
	b.Set(func(b *backendtest.Backend) { b.UploadDelay = time.Second })

	c := New(types.APIConfig{URL: b.URL, Key: backendtest.Token, UploadTimeout: 50 * time.Millisecond}, nil, zerolog.Nop())

	start := time.Now()
	_, err := c.Submit(context.Background(), validRequest())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTimeout, te.Kind)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubmitNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(types.APIConfig{URL: url, Key: "k"}, nil, zerolog.Nop())
	_, err := c.Submit(context.Background(), validRequest())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindNetwork, te.Kind)
}

func TestSubmitCancelledIsNotTransportError(t *testing.T) {
	b := backendtest.New(t)
	b.Set(func(b *backendtest.Backend) { b.UploadDelay = time.Second })
	c := newClient(t, b.URL)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := c.Submit(ctx, validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var te *TransportError
	assert.False(t, errors.As(err, &te))
}

func TestCheckStatusProgression(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	resp, err := c.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	var seen []types.Status
	prev := types.Status("")
	for i := 0; i < 6; i++ {
		st, err := c.CheckStatus(context.Background(), resp.SubmissionID)
		require.NoError(t, err)
		assert.True(t, st.Status.Valid(), "status must never be unset")
		assert.True(t, prev.Supersedes(st.Status), "status regressed from %s to %s", prev, st.Status)
		prev = st.Status
		seen = append(seen, st.Status)
	}
	assert.Equal(t, []types.Status{
		types.StatusPending, types.StatusProcessing, types.StatusCompleted,
		types.StatusCompleted, types.StatusCompleted, types.StatusCompleted,
	}, seen)

	st, err := c.CheckStatus(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.NotEmpty(t, st.DownloadURL)
	assert.Empty(t, st.ErrorMessage)
	require.NotNil(t, st.FileSize)
	assert.Equal(t, int64(len(fakePDF)), *st.FileSize)
}

func TestCheckStatusNotFound(t *testing.T) {
	b := backendtest.New(t)
	c := newClient(t, b.URL)

	_, err := c.CheckStatus(context.Background(), "0b7d1a5e-0000-4000-8000-000000000000")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Submission not found", nf.ServerMessage)
}

func TestCheckStatusEscapesID(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status": "processing"}`)
	}))
	defer ts.Close()

	c := New(types.APIConfig{URL: ts.URL + "/", Key: "k"}, ts.Client(), zerolog.Nop())
	st, err := c.CheckStatus(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "/api/status/a%2Fb%20c", gotPath)
	assert.Equal(t, "a/b c", st.ID)
	assert.Equal(t, types.StatusProcessing, st.Status)

	_, err = c.CheckStatus(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCheckStatusServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message": "maintenance"}`)
	}))
	defer ts.Close()

	c := New(types.APIConfig{URL: ts.URL, Key: "k"}, ts.Client(), zerolog.Nop())
	_, err := c.CheckStatus(context.Background(), "abc")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindHTTP, te.Kind)
	assert.Equal(t, "maintenance", te.ServerMessage)
	assert.Equal(t, "status failed: HTTP 503: maintenance", te.Error())
}
