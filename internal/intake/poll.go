// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/beo-intake/pkg/types"
)

var (
	// ErrPollInProgress rejects a second concurrent Watch.
	ErrPollInProgress = errors.New("status polling is already running")
	// ErrNoSubmission rejects Watch before any upload has succeeded.
	ErrNoSubmission = errors.New("no accepted submission to watch")
)

// StatusChecker looks up a submission's processing status.
type StatusChecker interface {
	CheckStatus(ctx context.Context, submissionID string) (*types.SubmissionStatus, error)
}

// Watch polls the status of the last accepted submission every interval
// until it is completed or failed, ctx is cancelled, or the controller is
// closed. onUpdate, if non-nil, is called for each accepted snapshot.
//
// Snapshots that would move the status backwards are ignored. A failed
// lookup ends the watch and is returned; there are no automatic retries.
// Only one Watch may run per controller at a time.
func (c *Controller) Watch(ctx context.Context, checker StatusChecker, interval time.Duration, onUpdate func(types.SubmissionStatus)) (*types.SubmissionStatus, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrClosed
	case c.polling:
		c.mu.Unlock()
		return nil, ErrPollInProgress
	case c.submissionID == "":
		c.mu.Unlock()
		return nil, ErrNoSubmission
	}
	id := c.submissionID
	baseline := c.ackStatus
	latest := c.outcome
	if latest != nil && latest.ID == id {
		baseline = latest.Status
	} else {
		latest = nil
	}
	c.polling = true
	pollCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)
	c.mu.Unlock()

	defer func() {
		stop()
		cancel()
		c.mu.Lock()
		c.polling = false
		c.mu.Unlock()
	}()

	if interval <= 0 {
		interval = types.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := c.log.With().Str("submission_id", id).Logger()
	for {
		st, err := checker.CheckStatus(pollCtx, id)
		if err != nil {
			if pollCtx.Err() != nil {
				return latest, pollCtx.Err()
			}
			log.Warn().Err(err).Msg("status check failed; polling stopped")
			return latest, fmt.Errorf("checking status of %s: %w", id, err)
		}

		if baseline.Supersedes(st.Status) {
			baseline = st.Status
			latest = st
			if !c.applyOutcome(id, st) {
				return latest, ErrClosed
			}
			if onUpdate != nil {
				onUpdate(*st)
			}
		} else {
			log.Warn().
				Str("have", string(baseline)).
				Str("got", string(st.Status)).
				Msg("ignoring status that does not advance")
		}

		if baseline.Terminal() {
			log.Info().Str("status", string(baseline)).Msg("processing finished")
			return latest, nil
		}

		select {
		case <-pollCtx.Done():
			return latest, pollCtx.Err()
		case <-ticker.C:
		}
	}
}

// applyOutcome stores st as the latest status for id. It reports false
// when the controller has closed and the result must be dropped.
func (c *Controller) applyOutcome(id string, st *types.SubmissionStatus) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.submissionID == id {
		cp := *st
		c.outcome = &cp
	}
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.UpdateStatus(context.Background(), *st); err != nil {
			c.log.Warn().Err(err).Str("submission_id", id).Msg("could not update receipt")
		}
	}
	return true
}

// OutcomeMessage describes a finished submission for the user. It returns
// "" while processing is still under way.
func OutcomeMessage(st *types.SubmissionStatus) string {
	if st == nil {
		return ""
	}
	switch st.Status {
	case types.StatusCompleted:
		if st.BEOCount != nil {
			return fmt.Sprintf("Your files are ready (%d BEOs): %s", *st.BEOCount, st.DownloadURL)
		}
		return "Your files are ready: " + st.DownloadURL
	case types.StatusFailed:
		if st.ErrorMessage != "" {
			return "Processing failed: " + st.ErrorMessage
		}
		return "Processing failed."
	}
	return ""
}
