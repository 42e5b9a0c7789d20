package recognizer

import (
	"strings"

	"voxcall/speech"
)

type Kind int

const (
	Started Kind = iota
	Partial
	Final
	Error
	Ended
)

func (k Kind) String() string {
	switch k {
	case Started:
		return "started"
	case Partial:
		return "partial"
	case Final:
		return "final"
	case Error:
		return "error"
	case Ended:
		return "ended"
	}
	return "unknown"
}

type ErrorKind int

const (
	NoSpeech ErrorKind = iota
	AudioCapture
	NotAllowed
	Other
)

// ParseErrorKind maps a source error string onto the error taxonomy.
func ParseErrorKind(raw string) ErrorKind {
	switch raw {
	case speech.ErrNoSpeech:
		return NoSpeech
	case speech.ErrAudioCapture:
		return AudioCapture
	case speech.ErrNotAllowed:
		return NotAllowed
	}
	return Other
}

// Event is one recognition event. Text is set for Partial and Final, Err
// and Raw for Error.
type Event struct {
	Kind Kind
	Text string
	Err  ErrorKind
	Raw  string
}

// Translate converts a source notification into recognition events. A
// result batch yields one Final per final segment from ResultIndex on, in
// index order, followed by a single Partial carrying the concatenated
// non-final text when there is any.
func Translate(ev speech.Event) []Event {
	switch ev.Type {
	case speech.EventStart:
		return []Event{{Kind: Started}}
	case speech.EventEnd:
		return []Event{{Kind: Ended}}
	case speech.EventError:
		return []Event{{Kind: Error, Err: ParseErrorKind(ev.Error), Raw: ev.Error}}
	case speech.EventResult:
		var out []Event
		var interim strings.Builder
		start := max(ev.ResultIndex, 0)
		for i := start; i < len(ev.Results); i++ {
			seg := ev.Results[i]
			if seg.IsFinal {
				out = append(out, Event{Kind: Final, Text: seg.Transcript})
			} else {
				interim.WriteString(seg.Transcript)
			}
		}
		if interim.Len() > 0 {
			out = append(out, Event{Kind: Partial, Text: interim.String()})
		}
		return out
	}
	return nil
}
