// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package intake implements the intake form's submission state machine.
//
// A Controller owns one form instance: its text fields, its file selection,
// and its submission state. States move idle → validating → submitting →
// success|error, and an edit or a resubmission starts the next cycle.
// Validation failures and transport failures are kept in the controller's
// state as a single user-facing message; they are not returned as errors.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/beo-intake/internal/client"
	"github.com/pdiddy/beo-intake/internal/form"
	"github.com/pdiddy/beo-intake/internal/httputil"
	"github.com/pdiddy/beo-intake/internal/pdffile"
	"github.com/pdiddy/beo-intake/pkg/types"
)

// State is the submission state of a form instance.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// User-facing messages.
const (
	MsgSelectFile     = "Please select a PDF file"
	MsgGenericFailure = "An error occurred. Please try again."
	MsgCancelled      = "The upload was cancelled. Please try again."
)

var (
	// ErrSubmissionInFlight rejects a submit while another is running.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	// ErrClosed rejects calls on a controller whose form has gone away.
	ErrClosed = errors.New("form is closed")
)

// Submitter sends a validated request to the backend.
type Submitter interface {
	Submit(ctx context.Context, req types.SubmissionRequest) (*types.UploadResponse, error)
}

// Recorder keeps receipts of accepted submissions. Failures are logged and
// never change the form's state.
type Recorder interface {
	Record(ctx context.Context, r types.Receipt) error
	UpdateStatus(ctx context.Context, st types.SubmissionStatus) error
}

// Snapshot is a copy of a controller's observable state.
type Snapshot struct {
	State   State
	Message string

	// FieldErrors holds every failing field from the last validation.
	FieldErrors form.Errors

	// FileMissing is set when the last submit found no PDF selected.
	FileMissing bool

	Fields form.Fields
	File   *pdffile.File

	// SubmissionID is the ID of the last accepted submission.
	SubmissionID string

	// Outcome is the latest status seen while watching SubmissionID.
	Outcome *types.SubmissionStatus
	Polling bool
}

// Busy reports whether the submit action should be disabled.
func (s Snapshot) Busy() bool { return s.State == StateSubmitting }

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder stores a receipt for every accepted submission.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithClock overrides the time source used for receipts.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the state machine for one form instance. It is safe for
// concurrent use; network calls are made without holding its lock.
type Controller struct {
	client   Submitter
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time
	files    pdffile.Selector

	// ctx lives as long as the form; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	fields       form.Fields
	message      string
	fieldErrs    form.Errors
	fileMissing  bool
	submissionID string
	ackStatus    types.Status
	outcome      *types.SubmissionStatus
	polling      bool
	closed       bool
}

// New returns an idle Controller that submits through sub.
func New(sub Submitter, log zerolog.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		client: sub,
		log:    log.With().Str("component", "intake").Logger(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFields replaces the text fields. It counts as an edit. Edits are
// refused with ErrSubmissionInFlight while an upload is running, so the
// fields being sent are never replaced underneath it.
func (c *Controller) SetFields(f form.Fields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	c.fields = f
	c.editedLocked()
	return nil
}

// SelectFile offers a candidate file. Non-PDF candidates clear the
// selection. It counts as an edit and returns the resulting selection.
// Like SetFields it is refused while an upload is running.
func (c *Controller) SelectFile(candidate *pdffile.File) (*pdffile.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting {
		return c.files.Selected(), ErrSubmissionInFlight
	}
	selected := c.files.Select(candidate)
	c.editedLocked()
	return selected, nil
}

// editedLocked starts a new cycle after success or error.
func (c *Controller) editedLocked() {
	if c.state != StateSuccess && c.state != StateError {
		return
	}
	c.state = StateIdle
	c.message = ""
	c.fieldErrs = nil
	c.fileMissing = false
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:        c.state,
		Message:      c.message,
		FieldErrors:  c.fieldErrs,
		FileMissing:  c.fileMissing,
		Fields:       c.fields,
		File:         c.files.Selected(),
		SubmissionID: c.submissionID,
		Outcome:      c.outcome,
		Polling:      c.polling,
	}
}

// Submit validates the form and, when valid, uploads it. It blocks until
// the upload finishes, ctx is cancelled, or the controller is closed. The
// outcome is reported through the returned Snapshot; the error is non-nil
// only when the submit was not attempted (ErrSubmissionInFlight, ErrClosed)
// or its result was abandoned because the controller closed.
func (c *Controller) Submit(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrClosed
	}
	if c.state == StateSubmitting {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrSubmissionInFlight
	}

	c.state = StateValidating
	c.message = ""
	fields := c.fields
	file := c.files.Selected()
	c.fieldErrs = form.Validate(fields)
	c.fileMissing = file == nil

	if file == nil || c.fieldErrs != nil {
		c.state = StateError
		if file == nil {
			c.message = MsgSelectFile
		} else {
			c.message = c.fieldErrs.First().Message
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.log.Debug().Str("reason", snap.Message).Msg("submission blocked by validation")
		return snap, nil
	}

	c.state = StateSubmitting
	reqCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)
	c.mu.Unlock()
	defer cancel()
	defer stop()

	resp, err := c.client.Submit(reqCtx, types.SubmissionRequest{
		Name:      fields.Name,
		Email:     fields.Email,
		EventName: fields.EventName,
		File:      file,
	})

	if err == nil && c.recorder != nil {
		c.record(fields, file, resp)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.log.Debug().Msg("form closed during upload; result dropped")
		return c.snapshotLocked(), ErrClosed
	}

	if err != nil {
		c.state = StateError
		c.message = UserMessage(err)
		c.log.Warn().Err(err).Msg("submission failed")
		return c.snapshotLocked(), nil
	}

	c.state = StateSuccess
	c.submissionID = resp.SubmissionID
	c.ackStatus = resp.Status
	c.outcome = nil
	c.message = fmt.Sprintf("File uploaded successfully! Processing will begin shortly. "+
		"You'll receive an email at %s when your files are ready.", fields.Email)
	c.fields = form.Fields{}
	c.fieldErrs = nil
	c.fileMissing = false
	c.files.Clear()
	return c.snapshotLocked(), nil
}

func (c *Controller) record(fields form.Fields, file *pdffile.File, resp *types.UploadResponse) {
	now := c.now().UTC()
	r := types.Receipt{
		SubmissionID: resp.SubmissionID,
		Name:         fields.Name,
		Email:        fields.Email,
		EventName:    fields.EventName,
		FileName:     file.FileName(),
		FileSize:     file.Size(),
		StatusURL:    resp.StatusURL,
		Status:       resp.Status,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	if err := c.recorder.Record(context.Background(), r); err != nil {
		c.log.Warn().Err(err).Str("submission_id", r.SubmissionID).Msg("could not record receipt")
	}
}

// Track makes id the submission that Watch follows, for a submission
// accepted earlier or elsewhere. Its status is unknown until the first
// lookup. Track does not change the form's state.
func (c *Controller) Track(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.state == StateSubmitting:
		return ErrSubmissionInFlight
	case c.polling:
		return ErrPollInProgress
	case strings.TrimSpace(id) == "":
		return ErrNoSubmission
	}
	c.submissionID = id
	c.ackStatus = ""
	c.outcome = nil
	return nil
}

// Close ends the form instance. In-flight uploads and polls are cancelled
// and their results are not applied. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// UserMessage maps an error to the message shown to the user: the
// backend's own detail when there is one, otherwise the error's text,
// otherwise a generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var te *client.TransportError
	if errors.As(err, &te) && te.Kind == client.KindHTTP && te.ServerMessage != "" {
		return te.ServerMessage
	}
	var nf *client.NotFoundError
	if errors.As(err, &nf) && nf.ServerMessage != "" {
		return nf.ServerMessage
	}
	if httputil.IsCanceled(err) {
		return MsgCancelled
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgGenericFailure
}
