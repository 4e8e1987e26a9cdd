// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crashguard isolates page rendering failures. A Guard catches a
// panic or error raised while rendering, remembers it, and renders a
// fallback view in place of the page until the user asks for a reload.
package crashguard

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the guard's health.
type State int

const (
	Healthy State = iota
	Faulted
)

func (s State) String() string {
	if s == Faulted {
		return "faulted"
	}
	return "healthy"
}

// DefaultMessage is shown when a fault carries no message of its own.
const DefaultMessage = "An unexpected error occurred"

// ReloadPath is where the fallback view posts its reload action.
const ReloadPath = "/reload"

// Fault is a captured render failure.
type Fault struct {
	Message string
	// Stack is the goroutine stack at the panic. It is empty for faults
	// that came from a returned error.
	Stack string
	At    time.Time
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return DefaultMessage
	}
	return f.Message
}

// Guard supervises rendering for one page instance. It is safe for
// concurrent use.
type Guard struct {
	reload func()
	log    zerolog.Logger

	mu    sync.Mutex
	fault *Fault
}

// New returns a healthy Guard. reload, if non-nil, is called by Reset to
// rebuild the page's state from scratch.
func New(reload func(), log zerolog.Logger) *Guard {
	return &Guard{
		reload: reload,
		log:    log.With().Str("component", "crashguard").Logger(),
	}
}

// State reports the guard's current health.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fault != nil {
		return Faulted
	}
	return Healthy
}

// Fault returns the captured fault, or nil while healthy.
func (g *Guard) Fault() *Fault {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fault == nil {
		return nil
	}
	f := *g.fault
	return &f
}

// Run calls fn. A panic or a non-nil error from fn faults the guard and is
// returned as a *Fault. While faulted, fn is not called and the existing
// fault is returned.
func (g *Guard) Run(fn func() error) (err error) {
	if f := g.Fault(); f != nil {
		return f
	}

	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				panic(r)
			}
			err = g.trip(panicMessage(r), string(debug.Stack()))
		}
	}()

	if ferr := fn(); ferr != nil {
		return g.trip(ferr.Error(), "")
	}
	return nil
}

func (g *Guard) trip(msg, stack string) *Fault {
	f := &Fault{Message: msg, Stack: stack, At: time.Now().UTC()}
	g.mu.Lock()
	if g.fault == nil {
		g.fault = f
	} else {
		f = g.fault
	}
	g.mu.Unlock()

	g.log.Error().Str("error", f.Message).Bool("panic", stack != "").Msg("render failed")
	return f
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}

// Reset returns the guard to healthy and triggers the reload callback.
func (g *Guard) Reset() {
	g.mu.Lock()
	was := g.fault
	g.fault = nil
	g.mu.Unlock()

	if was != nil {
		g.log.Info().Msg("reset after fault")
	}
	if g.reload != nil {
		g.reload()
	}
}

// Render runs render into a buffer under the guard. On success the buffer
// is written to w. On a fault, or while already faulted, the partial output
// is discarded and the fallback view is written with status 500.
func (g *Guard) Render(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	err := g.Run(func() error { return render(&buf) })
	if err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
		return
	}

	var f *Fault
	if !errors.As(err, &f) {
		f = &Fault{Message: err.Error()}
	}
	WriteFallback(w, f)
}

// WriteFallback writes the fallback view for f.
func WriteFallback(w http.ResponseWriter, f *Fault) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	fallbackTmpl.Execute(w, fallbackData{
		Message:    f.Error(),
		Stack:      f.Stack,
		ReloadPath: ReloadPath,
	})
}

type fallbackData struct {
	Message    string
	Stack      string
	ReloadPath string
}

var fallbackTmpl = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Something went wrong</title>
</head>
<body class="fault">
<main>
<h1>Something went wrong</h1>
<p>{{.Message}}</p>
<form method="post" action="{{.ReloadPath}}">
<button type="submit">Reload Page</button>
</form>
{{if .Stack}}<details>
<summary>Error Details</summary>
<pre>{{.Stack}}</pre>
</details>{{end}}
</main>
</body>
</html>
`))
