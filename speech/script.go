package speech

import (
	"context"
	"fmt"
	"sync"
)

// Script is a Source driven by explicit calls. It is used by tests and by
// the headless -test mode.
type Script struct {
	events chan Event

	mu      sync.Mutex
	running bool
	results results
	starts  int
	cfg     Config
}

func NewScript() *Script {
	return &Script{events: make(chan Event, 256)}
}

func (s *Script) Name() string { return "script" }

func (s *Script) Events() <-chan Event { return s.events }

func (s *Script) Start(_ context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("script source already running")
	}
	s.running = true
	s.starts++
	s.cfg = cfg
	s.results.reset()
	s.events <- Event{Type: EventStart}
	return nil
}

// Stop ends the session with an end event, as an engine confirming a stop
// request would.
func (s *Script) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.events <- Event{Type: EventEnd}
}

// Partial emits an interim segment.
func (s *Script) Partial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events <- s.results.update(Segment{Transcript: text})
}

// Final emits one result batch in which every text is a final segment.
func (s *Script) Final(texts ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ev Event
	for i, text := range texts {
		next := s.results.update(Segment{Transcript: text, IsFinal: true})
		if i == 0 {
			ev = next
		}
		ev.Results = next.Results
	}
	if len(texts) > 0 {
		s.events <- ev
	}
}

// Emit sends a raw event.
func (s *Script) Emit(ev Event) {
	s.events <- ev
}

// Fail reports an error; the engine then ends the session.
func (s *Script) Fail(kind string) {
	s.events <- Event{Type: EventError, Error: kind}
}

// End ends the session on the engine's own initiative.
func (s *Script) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.events <- Event{Type: EventEnd}
}

func (s *Script) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Script) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *Script) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
