// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web serves the intake form to browsers. Each browser gets its own
// form session backed by an intake.Controller, and every page is rendered
// under that session's crash guard.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pdiddy/beo-intake/internal/client"
	"github.com/pdiddy/beo-intake/internal/crashguard"
	"github.com/pdiddy/beo-intake/internal/form"
	"github.com/pdiddy/beo-intake/internal/history"
	"github.com/pdiddy/beo-intake/internal/intake"
	"github.com/pdiddy/beo-intake/internal/pdffile"
	"github.com/pdiddy/beo-intake/pkg/types"
)

// maxMemory is how much of a multipart form is held in memory; the rest
// spills to temporary files. There is no upper bound on the file itself.
const maxMemory = 32 << 20

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"formatSize": pdffile.FormatSize,
	"outcome":    intake.OutcomeMessage,
	"deref":      func(n *int64) int64 { return *n },
	"page":       func(title string, refresh int) pageMeta { return pageMeta{title, refresh} },
}).ParseFS(templateFS, "templates/*.html"))

// pageMeta feeds the shared header.
type pageMeta struct {
	Title   string
	Refresh int
}

// Backend is the part of the submission client the front end uses.
type Backend interface {
	intake.Submitter
	intake.StatusChecker
}

// Options configures a Handler.
type Options struct {
	// Recorder, if set, keeps receipts of accepted submissions.
	Recorder intake.Recorder

	// PollInterval is how often the status page refreshes itself while
	// processing is under way.
	PollInterval time.Duration

	// SessionTTL bounds how long an idle form session is kept.
	SessionTTL time.Duration

	// CORSOrigins may call the JSON endpoints.
	CORSOrigins []string
}

// Handler serves the intake pages.
type Handler struct {
	backend  Backend
	recorder intake.Recorder
	poll     time.Duration
	cors     []string
	sessions *Sessions
	log      zerolog.Logger
}

// NewHandler returns a Handler that submits through backend.
func NewHandler(backend Backend, opts Options, log zerolog.Logger) *Handler {
	h := &Handler{
		backend:  backend,
		recorder: opts.Recorder,
		poll:     opts.PollInterval,
		cors:     opts.CORSOrigins,
		log:      log.With().Str("component", "web").Logger(),
	}
	if h.poll <= 0 {
		h.poll = types.DefaultPollInterval
	}
	h.sessions = NewSessions(h.newController, opts.SessionTTL, log)
	return h
}

func (h *Handler) newController() *intake.Controller {
	var opts []intake.Option
	if h.recorder != nil {
		opts = append(opts, intake.WithRecorder(h.recorder))
	}
	return intake.New(h.backend, h.log, opts...)
}

// Sessions exposes the session table, mainly for shutdown.
func (h *Handler) Sessions() *Sessions { return h.sessions }

// Routes builds the router with its middleware chain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if len(h.cors) > 0 {
		r.Use(NewCORS(h.cors))
	}
	r.Use(RequestLogger(h.log))
	r.Use(Recovery(h.log))

	r.Get("/", h.handleForm)
	r.Post("/submit", h.handleSubmit)
	r.Get("/submissions/{id}", h.handleStatusPage)
	r.Post(crashguard.ReloadPath, h.handleReload)
	r.Get("/api/submissions/{id}", h.handleStatusJSON)
	r.Get("/healthz", h.handleHealth)
	return r
}

// --- form ---

type formView struct {
	intake.Snapshot
	NameError  string
	EmailError string
	StatusPath string

	// Refresh is set while an upload runs so the page picks up its result.
	Refresh int
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.lookup(w, r)
	snap := sess.controller().Snapshot()

	view := formView{Snapshot: snap}
	if fe := snap.FieldErrors.For(form.FieldName); fe != nil {
		view.NameError = fe.Message
	}
	if fe := snap.FieldErrors.For(form.FieldEmail); fe != nil {
		view.EmailError = fe.Message
	}
	if snap.State == intake.StateSuccess && snap.SubmissionID != "" {
		view.StatusPath = "/submissions/" + snap.SubmissionID
	}
	if snap.Busy() {
		view.Refresh = h.refreshSeconds()
	}

	w.Header().Set("Cache-Control", "no-store")
	sess.guard.Render(w, func(out io.Writer) error {
		return pages.ExecuteTemplate(out, "form.html", view)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.lookup(w, r)
	ctrl := sess.controller()
	log := zerolog.Ctx(r.Context())

	// A second post while the upload runs, usually a double click, must not
	// touch the form being sent.
	if ctrl.Snapshot().Busy() {
		log.Debug().Msg("upload in progress; post ignored")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.Warn().Err(err).Msg("could not parse form")
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	err := ctrl.SetFields(form.Fields{
		Name:      r.FormValue(form.FieldName),
		Email:     r.FormValue(form.FieldEmail),
		EventName: r.FormValue(form.FieldEventName),
	})
	if err == nil {
		// Browsers never resend a file, so every post replaces the selection.
		_, err = ctrl.SelectFile(uploadedFile(r))
	}
	if err == nil {
		_, err = ctrl.Submit(r.Context())
	}
	if err != nil {
		log.Debug().Err(err).Msg("submit not applied")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// uploadedFile returns the pdf_file part as a candidate, or nil when the
// browser sent none.
func uploadedFile(r *http.Request) *pdffile.File {
	if r.MultipartForm == nil {
		return nil
	}
	parts := r.MultipartForm.File["pdf_file"]
	if len(parts) == 0 || parts[0].Filename == "" {
		return nil
	}
	fh := parts[0]
	return pdffile.New(fh.Filename, fh.Header.Get("Content-Type"), fh.Size, func() (io.ReadCloser, error) {
		return fh.Open()
	})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.lookup(w, r)
	sess.guard.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// --- status ---

type statusView struct {
	ID      string
	Status  *types.SubmissionStatus
	Error   string
	Refresh int
}

func (h *Handler) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.lookup(w, r)
	id := chi.URLParam(r, "id")

	view := statusView{ID: id}
	st, err := h.lookupStatus(r.Context(), id)
	if err != nil {
		view.Error = intake.UserMessage(err)
	} else {
		view.Status = st
		if !st.Status.Terminal() {
			view.Refresh = h.refreshSeconds()
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	sess.guard.Render(w, func(out io.Writer) error {
		return pages.ExecuteTemplate(out, "status.html", view)
	})
}

func (h *Handler) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	st, err := h.lookupStatus(r.Context(), chi.URLParam(r, "id"))
	if err == nil {
		writeJSON(w, http.StatusOK, st)
		return
	}

	code := http.StatusBadGateway
	var (
		nf     *client.NotFoundError
		cfgErr *client.ConfigurationError
	)
	switch {
	case errors.As(err, &nf):
		code = http.StatusNotFound
	case errors.As(err, &cfgErr):
		code = http.StatusServiceUnavailable
	case errors.Is(err, client.ErrInvalidRequest):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"detail": intake.UserMessage(err)})
}

// lookupStatus asks the backend for id and keeps the local receipt, if
// any, in step with the answer.
func (h *Handler) lookupStatus(ctx context.Context, id string) (*types.SubmissionStatus, error) {
	st, err := h.backend.CheckStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.recorder != nil {
		if err := h.recorder.UpdateStatus(ctx, *st); err != nil && !errors.Is(err, history.ErrNotFound) {
			h.log.Warn().Err(err).Str("submission_id", id).Msg("could not update receipt")
		}
	}
	return st, nil
}

// refreshSeconds is the poll interval rounded up to whole seconds, as
// meta refresh wants.
func (h *Handler) refreshSeconds() int {
	return int((h.poll + time.Second - 1) / time.Second)
}

// --- health ---

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Sessions  int       `json:"sessions"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Sessions:  h.sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
