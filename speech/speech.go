// Package speech defines the continuous speech-to-text source consumed by
// the recognizer, plus a scripted source for tests and a Deepgram streaming
// source for live use.
package speech

import "context"

type EventType string

const (
	EventStart  EventType = "start"
	EventResult EventType = "result"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// Error kinds a source may report.
const (
	ErrNoSpeech     = "no-speech"
	ErrAudioCapture = "audio-capture"
	ErrNotAllowed   = "not-allowed"
	ErrNetwork      = "network"
)

// Segment is one recognition result in a session's result list.
type Segment struct {
	Transcript string
	IsFinal    bool
}

// Event is one notification from a source. For EventResult, Results holds
// the session's result list and ResultIndex is the first entry that changed.
type Event struct {
	Type        EventType
	ResultIndex int
	Results     []Segment
	Error       string
}

type Config struct {
	Continuous     bool // keep listening across pauses
	InterimResults bool // emit non-final segments
	Language       string
}

// Source produces events for at most one session at a time. Start and Stop
// return quickly; the session's progress is reported on Events.
type Source interface {
	Name() string
	Start(ctx context.Context, cfg Config) error
	Stop()
	Events() <-chan Event
}

// results tracks a session's result list the way a browser recognizer
// does: finals stay in place, the trailing interim entry is revised until
// it becomes final.
type results struct {
	list    []Segment
	pending bool
}

func (r *results) update(seg Segment) Event {
	idx := len(r.list)
	if r.pending {
		idx--
		r.list[idx] = seg
	} else {
		r.list = append(r.list, seg)
	}
	r.pending = !seg.IsFinal
	snapshot := make([]Segment, len(r.list))
	copy(snapshot, r.list)
	return Event{Type: EventResult, ResultIndex: idx, Results: snapshot}
}

func (r *results) reset() {
	r.list = nil
	r.pending = false
}
