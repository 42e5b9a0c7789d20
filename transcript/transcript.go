// Package transcript accumulates finalized utterances and the current
// interim text of a recognition session.
package transcript

import "strings"

// Separator follows every finalized utterance.
const Separator = ". "

// Transcript is append-only for finalized text. The interim portion is
// replaced on every update and never becomes part of the finalized text by
// itself.
type Transcript struct {
	finalized strings.Builder
	interim   string
	count     int
}

// Append adds a finalized utterance. Text is trimmed; empty text is ignored
// and reported as false.
func (t *Transcript) Append(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	t.finalized.WriteString(text)
	t.finalized.WriteString(Separator)
	t.count++
	return true
}

// SetInterim replaces the interim portion. The text is kept untrimmed.
func (t *Transcript) SetInterim(text string) {
	t.interim = text
}

func (t *Transcript) Finalized() string { return t.finalized.String() }

func (t *Transcript) Interim() string { return t.interim }

// Len is the number of finalized utterances.
func (t *Transcript) Len() int { return t.count }

// Display is the finalized text followed by the interim text.
func (t *Transcript) Display() string {
	return t.finalized.String() + t.interim
}

func (t *Transcript) Empty() bool {
	return t.finalized.Len() == 0 && t.interim == ""
}

// Reset clears finalized and interim text.
func (t *Transcript) Reset() {
	t.finalized.Reset()
	t.interim = ""
	t.count = 0
}
