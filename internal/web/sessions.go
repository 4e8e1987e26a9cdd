// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/beo-intake/internal/crashguard"
	"github.com/pdiddy/beo-intake/internal/intake"
	"github.com/pdiddy/beo-intake/pkg/types"
)

// CookieName holds the browser's form session ID.
const CookieName = "beo_session"

// session is one browser's form instance.
type session struct {
	id    string
	guard *crashguard.Guard

	mu       sync.Mutex
	ctrl     *intake.Controller
	lastSeen time.Time
}

func (s *session) controller() *intake.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close unmounts the form: in-flight work is cancelled and dropped.
func (s *session) close() {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	ctrl.Close()
}

// Sessions maps browser cookies to form instances. Sessions idle for longer
// than the TTL are closed by Sweep.
type Sessions struct {
	newController func() *intake.Controller
	ttl           time.Duration
	log           zerolog.Logger
	now           func() time.Time

	mu   sync.Mutex
	byID map[string]*session
}

// NewSessions creates an empty session table. newController builds the
// controller for each new form instance.
func NewSessions(newController func() *intake.Controller, ttl time.Duration, log zerolog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = types.DefaultSessionTTL
	}
	return &Sessions{
		newController: newController,
		ttl:           ttl,
		log:           log.With().Str("component", "sessions").Logger(),
		now:           time.Now,
		byID:          make(map[string]*session),
	}
}

// lookup returns the caller's session, starting a new one and setting its
// cookie when the request carries none or an expired one.
func (s *Sessions) lookup(w http.ResponseWriter, r *http.Request) *session {
	now := s.now()
	if c, err := r.Cookie(CookieName); err == nil {
		s.mu.Lock()
		sess, ok := s.byID[c.Value]
		s.mu.Unlock()
		if ok {
			sess.touch(now)
			return sess
		}
	}

	sess := s.create(now)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Sessions) create(now time.Time) *session {
	sess := &session{
		id:       uuid.NewString(),
		ctrl:     s.newController(),
		lastSeen: now,
	}
	sess.guard = crashguard.New(func() { s.reload(sess) }, s.log.With().Str("session", sess.id).Logger())

	s.mu.Lock()
	s.byID[sess.id] = sess
	s.mu.Unlock()

	s.log.Debug().Str("session", sess.id).Msg("session started")
	return sess
}

// reload replaces a session's form instance with a fresh one, the server
// side of a full page reload.
func (s *Sessions) reload(sess *session) {
	fresh := s.newController()
	sess.mu.Lock()
	old := sess.ctrl
	sess.ctrl = fresh
	sess.mu.Unlock()
	old.Close()
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.byID {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.byID, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	if len(expired) > 0 {
		s.log.Debug().Int("closed", len(expired)).Msg("expired idle sessions")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is cancelled.
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close closes every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.byID
	s.byID = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
}

// Len reports the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
