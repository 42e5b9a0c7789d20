// Package recognizer turns a continuous stream of recognition events into
// a transcript and a sequence of finalized utterances.
package recognizer

import (
	"strings"

	"voxcall/transcript"
)

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Status messages shown to the user.
const (
	StatusListening        = "Listening... Speak now."
	StatusStopped          = "Listening stopped."
	StatusPermissionDenied = "Microphone permission denied. Please enable it in your system settings."
	StatusCleared          = "Transcript and results cleared."
	StatusStopping         = "Still stopping the previous session, try again."
	StatusNoSpeech         = "No speech detected. Try speaking louder or closer."
	StatusAudioCapture     = "Microphone problem. Ensure it's working."
	StatusNotAllowed       = "Microphone access denied by user."
)

// Message is the status text for an error of this kind.
func (k ErrorKind) Message(raw string) string {
	switch k {
	case NoSpeech:
		return StatusNoSpeech
	case AudioCapture:
		return StatusAudioCapture
	case NotAllowed:
		return StatusNotAllowed
	}
	return "Speech recognition error: " + raw
}

// Session is the state of the one recognition session. StopRequested is set
// from a stop (asked for by the user, or forced by an error) until the
// source's end event; results the source flushes in that window are still
// accepted.
type Session struct {
	State         State
	Confirmed     bool
	StopRequested bool
}

// Utterance is one finalized, trimmed text segment.
type Utterance struct {
	Seq  int
	Text string
}

// Effects tells the caller what a transition requires of the outside
// world. An empty Status leaves the status line unchanged.
type Effects struct {
	Utterances  []Utterance
	Status      string
	StartSource bool
	StopSource  bool
	Cleared     bool
	Refresh     bool
}

// Machine owns the session and its transcript. It performs no I/O.
type Machine struct {
	session    Session
	transcript transcript.Transcript
	seq        int
}

func New() *Machine {
	return &Machine{}
}

func (m *Machine) Session() Session { return m.session }

func (m *Machine) Listening() bool { return m.session.State == Listening }

func (m *Machine) Display() string { return m.transcript.Display() }

func (m *Machine) Finalized() string { return m.transcript.Finalized() }

// Utterances is the number of utterances created since the process started.
func (m *Machine) Utterances() int { return m.seq }

// Start begins a new session. The transcript is cleared first; probeErr is
// the result of the microphone access check and keeps the machine Idle
// when non-nil.
func (m *Machine) Start(probeErr error) Effects {
	if m.session.State == Listening {
		return Effects{}
	}
	if m.session.StopRequested {
		return Effects{Status: StatusStopping}
	}
	m.transcript.Reset()
	eff := Effects{Cleared: true, Refresh: true}
	if probeErr != nil {
		eff.Status = StatusPermissionDenied
		return eff
	}
	m.session = Session{State: Listening}
	eff.StartSource = true
	return eff
}

// Abort returns to Idle when the source could not be started.
func (m *Machine) Abort(status string) Effects {
	m.session = Session{}
	return Effects{Status: status, Refresh: true}
}

// Stop ends the session on the user's request. The source's end event that
// follows is expected and reported no further.
func (m *Machine) Stop() Effects {
	if m.session.State != Listening {
		return Effects{}
	}
	m.session = Session{StopRequested: true}
	return Effects{Status: StatusStopped, StopSource: true, Refresh: true}
}

// Reset stops a running session and clears the transcript.
func (m *Machine) Reset() Effects {
	eff := Effects{Status: StatusCleared, Cleared: true, Refresh: true}
	if m.session.State == Listening {
		m.session = Session{StopRequested: true}
		eff.StopSource = true
	}
	m.transcript.Reset()
	return eff
}

// Handle applies one event from the source.
func (m *Machine) Handle(ev Event) Effects {
	active := m.session.State == Listening || m.session.StopRequested

	switch ev.Kind {
	case Started:
		if m.session.State != Listening {
			return Effects{}
		}
		m.session.Confirmed = true
		return Effects{Status: StatusListening, Refresh: true}

	case Partial:
		if !active {
			return Effects{}
		}
		m.transcript.SetInterim(ev.Text)
		return Effects{Refresh: true}

	case Final:
		if !active {
			return Effects{}
		}
		m.transcript.SetInterim("")
		eff := Effects{Refresh: true}
		text := strings.TrimSpace(ev.Text)
		if m.transcript.Append(text) {
			m.seq++
			eff.Utterances = []Utterance{{Seq: m.seq, Text: text}}
		}
		return eff

	case Error:
		if m.session.State == Listening {
			m.session = Session{StopRequested: true}
			return Effects{Status: ev.Err.Message(ev.Raw), StopSource: true, Refresh: true}
		}
		if m.session.StopRequested {
			return Effects{Status: ev.Err.Message(ev.Raw)}
		}
		return Effects{}

	case Ended:
		if m.session.State == Listening {
			m.session = Session{}
			return Effects{Status: StatusStopped, Refresh: true}
		}
		m.session.StopRequested = false
		return Effects{Refresh: true}
	}
	return Effects{}
}

// Apply translates a batch of events and merges their effects in order.
func (m *Machine) Apply(events []Event) Effects {
	var out Effects
	for _, ev := range events {
		eff := m.Handle(ev)
		out.Utterances = append(out.Utterances, eff.Utterances...)
		if eff.Status != "" {
			out.Status = eff.Status
		}
		out.StartSource = out.StartSource || eff.StartSource
		out.StopSource = out.StopSource || eff.StopSource
		out.Cleared = out.Cleared || eff.Cleared
		out.Refresh = out.Refresh || eff.Refresh
	}
	return out
}
