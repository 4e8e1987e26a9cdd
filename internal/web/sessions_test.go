// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/beo-intake/internal/intake"
	"github.com/pdiddy/beo-intake/pkg/types"
)

type nopSubmitter struct{}

func (nopSubmitter) Submit(context.Context, types.SubmissionRequest) (*types.UploadResponse, error) {
	return &types.UploadResponse{SubmissionID: "x", Status: types.StatusPending}, nil
}

func testSessions(ttl time.Duration) (*Sessions, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(func() *intake.Controller {
		return intake.New(nopSubmitter{}, zerolog.Nop())
	}, ttl, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s, &now
}

func TestLookupSetsCookie(t *testing.T) {
	s, _ := testSessions(time.Minute)
	rec := httptest.NewRecorder()
	sess := s.lookup(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, sess.id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	again := s.lookup(httptest.NewRecorder(), req)
	assert.Same(t, sess, again)
}

func TestLookupUnknownCookieStartsNewSession(t *testing.T) {
	s, _ := testSessions(time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})

	sess := s.lookup(httptest.NewRecorder(), req)
	assert.NotEqual(t, "stale", sess.id)
	assert.Equal(t, 1, s.Len())
}

func TestSweepClosesIdleSessions(t *testing.T) {
	s, now := testSessions(time.Minute)
	idle := s.lookup(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	*now = now.Add(45 * time.Second)
	active := s.lookup(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	*now = now.Add(30 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, err := idle.controller().Submit(context.Background())
	assert.ErrorIs(t, err, intake.ErrClosed)
	_, err = active.controller().Submit(context.Background())
	assert.NoError(t, err)
}

func TestReloadReplacesController(t *testing.T) {
	s, _ := testSessions(time.Minute)
	sess := s.lookup(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	old := sess.controller()

	sess.guard.Reset()

	assert.NotSame(t, old, sess.controller())
	_, err := old.Submit(context.Background())
	assert.ErrorIs(t, err, intake.ErrClosed)
}

func TestCloseClosesAll(t *testing.T) {
	s, _ := testSessions(time.Minute)
	sess := s.lookup(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	s.Close()

	assert.Equal(t, 0, s.Len())
	_, err := sess.controller().Submit(context.Background())
	assert.ErrorIs(t, err, intake.ErrClosed)
}
