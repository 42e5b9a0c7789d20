// Package dispatch sends finalized utterances to the function-call backend
// and tracks the calls that have not completed yet.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxcall/log"
)

type Status int

const (
	Pending Status = iota
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// PendingCall is one in-flight or completed backend request.
type PendingCall struct {
	ID      string
	Text    string
	Status  Status
	Results []FunctionCall
	Message string
	Started time.Time
}

// Completion is the outcome of one backend request, delivered on the
// dispatcher's channel.
type Completion struct {
	ID      string
	Results []FunctionCall
	Err     error
	Metrics *NetworkMetrics
}

// Dispatcher issues one backend request per utterance. Dispatch, Resolve
// and Reset must be called from a single goroutine; request goroutines only
// send on the completion channel.
type Dispatcher struct {
	backend Backend
	ctx     context.Context
	done    chan Completion
	pending map[string]*PendingCall
	calls   int
	newID   func() string
}

// New returns a dispatcher whose requests live as long as ctx.
func New(ctx context.Context, backend Backend) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		ctx:     ctx,
		done:    make(chan Completion, 16),
		pending: make(map[string]*PendingCall),
		newID:   uuid.NewString,
	}
}

func (d *Dispatcher) Completions() <-chan Completion { return d.done }

// Pending is the number of calls awaiting completion.
func (d *Dispatcher) Pending() int { return len(d.pending) }

// Calls is the number of function calls received so far.
func (d *Dispatcher) Calls() int { return d.calls }

// Dispatch records a pending call for text and starts its request. Text
// that is empty after trimming is ignored.
func (d *Dispatcher) Dispatch(text string) (PendingCall, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return PendingCall{}, false
	}

	pc := &PendingCall{
		ID:      d.newID(),
		Text:    text,
		Status:  Pending,
		Started: time.Now(),
	}
	d.pending[pc.ID] = pc

	go d.run(pc.ID, text)
	return *pc, true
}

func (d *Dispatcher) run(id, text string) {
	results, metrics, err := d.backend.ProcessText(d.ctx, text)
	c := Completion{ID: id, Results: results, Err: err, Metrics: metrics}
	select {
	case d.done <- c:
	case <-d.ctx.Done():
	}
}

// Resolve settles the pending call a completion belongs to. It reports
// false for completions of calls dropped by Reset.
func (d *Dispatcher) Resolve(c Completion) (PendingCall, bool) {
	pc, ok := d.pending[c.ID]
	if !ok {
		log.Debugf("discarding completion for dropped call %s", c.ID)
		return PendingCall{}, false
	}
	delete(d.pending, c.ID)

	m := log.DispatchMetrics{ID: c.ID}
	if c.Metrics != nil {
		m.TTFBMs = float64(c.Metrics.TTFB.Microseconds()) / 1000
		m.TotalMs = float64(c.Metrics.Total.Microseconds()) / 1000
		m.ConnReused = c.Metrics.ConnReused
	}

	if c.Err != nil {
		pc.Status = Failed
		pc.Message = ErrorMessage(c.Err)
		var be *BackendError
		if errors.As(c.Err, &be) {
			m.StatusCode = be.StatusCode
		}
		log.Errorf("dispatch %s failed: %v", c.ID, c.Err)
	} else {
		pc.Status = Succeeded
		pc.Results = c.Results
		d.calls += len(c.Results)
		m.Results = len(c.Results)
	}
	m.Status = pc.Status.String()
	log.Dispatch(m)

	return *pc, true
}

// Reset drops every pending call. Their completions are discarded when
// they arrive.
func (d *Dispatcher) Reset() int {
	n := len(d.pending)
	clear(d.pending)
	return n
}

// ErrorMessage is the user-facing text for a failed call.
func ErrorMessage(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}
