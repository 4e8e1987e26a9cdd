// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backendtest runs an in-process fake of the BEO processing backend
// for tests. It enforces bearer auth, accepts multipart uploads, and walks
// each submission through a scripted status progression, one step per
// status lookup.
package backendtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pdiddy/beo-intake/pkg/types"
)

// Token is the bearer token the fake accepts by default.
const Token = "test-token"

// Upload is what the fake received for one accepted submission.
type Upload struct {
	ID                 string
	Name               string
	Email              string
	EventName          string
	HasEventName       bool
	FileName           string
	FileContentType    string
	Data               []byte
	Authorization      string
	RequestContentType string

	// ContentLength is the declared request length, -1 when the body was
	// sent chunked. BodyBytes is how many bytes actually arrived.
	ContentLength    int64
	TransferEncoding []string
	BodyBytes        int
}

// Backend is a running fake. Fields may be changed between requests; they
// are read under the backend's lock.
type Backend struct {
	*httptest.Server

	mu sync.Mutex

	// Token is the accepted bearer token.
	Token string

	// Script is the sequence of states returned by successive status
	// lookups of the same submission. The last entry repeats.
	Script []types.Status

	// UploadDelay is slept before answering an upload.
	UploadDelay time.Duration

	// FailUpload, when non-zero, makes uploads fail with this status and
	// FailDetail as the JSON detail.
	FailUpload int
	FailDetail string

	uploads     []Upload
	statusCalls map[string]int
	uploadCalls int
}

// New starts a fake backend and registers its shutdown with t.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		Token:       Token,
		Script:      []types.Status{types.StatusPending, types.StatusProcessing, types.StatusCompleted},
		statusCalls: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Post("/api/upload", b.handleUpload)
	r.Get("/api/status/{id}", b.handleStatus)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// Set runs fn under the backend's lock, for changing fields between calls.
func (b *Backend) Set(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// Uploads returns the accepted uploads in arrival order.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

// UploadCalls counts every upload request, accepted or not.
func (b *Backend) UploadCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploadCalls
}

// StatusCalls counts status lookups for id.
func (b *Backend) StatusCalls(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[id]
}

// AddSubmission registers a submission without an upload so status
// lookups for id succeed.
func (b *Backend) AddSubmission(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, Upload{ID: id})
}

func (b *Backend) authorized(w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	token := b.Token
	b.mu.Unlock()

	auth := r.Header.Get("Authorization")
	switch {
	case auth == "":
		writeDetail(w, http.StatusUnauthorized, "Missing Authorization header")
		return false
	case auth != "Bearer "+token:
		writeDetail(w, http.StatusUnauthorized, "Invalid API key")
		return false
	}
	return true
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.uploadCalls++
	delay, failStatus, failDetail := b.UploadDelay, b.FailUpload, b.FailDetail
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if !b.authorized(w, r) {
		return
	}
	if failStatus != 0 {
		writeDetail(w, failStatus, failDetail)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	name, email := r.FormValue("name"), r.FormValue("email")
	if name == "" || email == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name and email are required")
		return
	}

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "pdf_file is required")
		return
	}
	defer file.Close()
	if header.Header.Get("Content-Type") != types.PDFContentType {
		writeDetail(w, http.StatusBadRequest, "File must be a PDF")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Error uploading file: "+err.Error())
		return
	}

	_, hasEvent := r.MultipartForm.Value["event_name"]
	up := Upload{
		ID:                 uuid.NewString(),
		Name:               name,
		Email:              email,
		EventName:          r.FormValue("event_name"),
		HasEventName:       hasEvent,
		FileName:           header.Filename,
		FileContentType:    header.Header.Get("Content-Type"),
		Data:               data,
		Authorization:      r.Header.Get("Authorization"),
		RequestContentType: r.Header.Get("Content-Type"),
		ContentLength:      r.ContentLength,
		TransferEncoding:   r.TransferEncoding,
		BodyBytes:          len(raw),
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, up)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, types.UploadResponse{
		SubmissionID: up.ID,
		Status:       types.StatusPending,
		StatusURL:    "/api/status/" + up.ID,
		Message:      "File uploaded successfully. Processing will begin shortly.",
	})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	var found *Upload
	for i := range b.uploads {
		if b.uploads[i].ID == id {
			found = &b.uploads[i]
			break
		}
	}
	if found == nil {
		b.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Submission not found")
		return
	}
	step := b.statusCalls[id]
	b.statusCalls[id]++
	status := types.StatusPending
	if len(b.Script) > 0 {
		if step >= len(b.Script) {
			step = len(b.Script) - 1
		}
		status = b.Script[step]
	}
	st := types.SubmissionStatus{
		ID:        id,
		Name:      found.Name,
		Email:     found.Email,
		EventName: found.EventName,
		Status:    status,
	}
	size := int64(len(found.Data))
	st.FileSize = &size
	b.mu.Unlock()

	switch status {
	case types.StatusCompleted:
		st.DownloadURL = "https://downloads.example.com/" + id + ".zip"
		count := 3
		st.BEOCount = &count
		st.CompletedAt = &types.Timestamp{Time: time.Now().UTC()}
	case types.StatusFailed:
		st.ErrorMessage = "No BEO pages found in document"
	}
	writeJSON(w, http.StatusOK, st)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
