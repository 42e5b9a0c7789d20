// Package render keeps the ordered list of result blocks shown for
// dispatched utterances.
package render

import (
	"bytes"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"voxcall/dispatch"
)

// Hint is shown while the board has no blocks.
const Hint = "Function calls will appear here..."

type Kind int

const (
	Placeholder Kind = iota
	Call
	NoCall
	Error
)

// Block is one entry on the board. ID links a placeholder to the call it
// stands for; Name and Arguments are set for Call blocks, Message for Error.
type Block struct {
	ID        string
	Kind      Kind
	Text      string
	Name      string
	Arguments string
	Message   string
}

// Title is the first line of the block.
func (b Block) Title() string {
	switch b.Kind {
	case Placeholder:
		return `Processing: "` + b.Text + `" for function call...`
	case Call:
		return "Function: " + b.Name
	case NoCall:
		return `AI analysis for "` + b.Text + `": No function call.`
	case Error:
		return "Error during function call processing: " + b.Message
	}
	return ""
}

func (b Block) String() string {
	if b.Kind != Call {
		return b.Title()
	}
	return b.Title() + "\nArguments:\n" + b.Arguments
}

// Board is append-only except for resolving placeholders. It is not safe
// for concurrent use.
type Board struct {
	blocks []Block
}

func (b *Board) Blocks() []Block { return slices.Clone(b.blocks) }

func (b *Board) Len() int { return len(b.blocks) }

func (b *Board) Empty() bool { return len(b.blocks) == 0 }

func (b *Board) Clear() { b.blocks = nil }

// AddPlaceholder appends the placeholder for a call that was just sent.
func (b *Board) AddPlaceholder(pc dispatch.PendingCall) {
	b.blocks = append(b.blocks, Block{ID: pc.ID, Kind: Placeholder, Text: pc.Text})
}

// Complete removes the placeholder of pc and appends its outcome: one
// block per function call, a no-call block, or an error block.
func (b *Board) Complete(pc dispatch.PendingCall) {
	b.blocks = slices.DeleteFunc(b.blocks, func(blk Block) bool {
		return blk.Kind == Placeholder && blk.ID == pc.ID
	})

	switch {
	case pc.Status == dispatch.Failed:
		b.blocks = append(b.blocks, Block{ID: pc.ID, Kind: Error, Text: pc.Text, Message: pc.Message})
	case len(pc.Results) == 0:
		b.blocks = append(b.blocks, Block{ID: pc.ID, Kind: NoCall, Text: pc.Text})
	default:
		for _, fc := range pc.Results {
			b.blocks = append(b.blocks, Block{
				ID:        pc.ID,
				Kind:      Call,
				Text:      pc.Text,
				Name:      fc.Name,
				Arguments: FormatArguments(fc.Arguments),
			})
		}
	}
}

func (b *Board) String() string { return Text(b.blocks) }

// Text renders blocks as plain text separated by blank lines, or the hint
// when there are none.
func Text(blocks []Block) string {
	if len(blocks) == 0 {
		return Hint
	}
	parts := make([]string, len(blocks))
	for i, blk := range blocks {
		parts[i] = blk.String()
	}
	return strings.Join(parts, "\n\n")
}

// FormatArguments lays out a JSON value with two-space indentation and
// object keys in sorted order. Values that are not valid JSON are returned
// as they are.
func FormatArguments(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}"
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndentWithOption(v, "", "  ", json.DisableHTMLEscape())
	if err != nil {
		return string(raw)
	}
	return string(out)
}
