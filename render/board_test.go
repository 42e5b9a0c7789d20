package render

import (
	"testing"

	"github.com/goccy/go-json"

	"voxcall/dispatch"
)

func TestEmptyBoardShowsHint(t *testing.T) {
	var b Board
	if got := b.String(); got != Hint {
		t.Errorf("String() = %q", got)
	}
}

func TestPlaceholderResolvedInPlace(t *testing.T) {
	var b Board
	b.AddPlaceholder(dispatch.PendingCall{ID: "a", Text: "red shoes"})
	b.AddPlaceholder(dispatch.PendingCall{ID: "b", Text: "blue hats"})

	if got := b.Blocks()[0].Title(); got != `Processing: "red shoes" for function call...` {
		t.Errorf("placeholder = %q", got)
	}

	b.Complete(dispatch.PendingCall{ID: "b", Text: "blue hats", Status: dispatch.Succeeded})
	blocks := b.Blocks()
	if len(blocks) != 2 || blocks[0].ID != "a" || blocks[0].Kind != Placeholder {
		t.Fatalf("blocks = %+v", blocks)
	}
	if got := blocks[1].Title(); got != `AI analysis for "blue hats": No function call.` {
		t.Errorf("no-call = %q", got)
	}

	b.Complete(dispatch.PendingCall{
		ID:      "a",
		Text:    "red shoes",
		Status:  dispatch.Succeeded,
		Results: []dispatch.FunctionCall{{Name: "filter_products", Arguments: json.RawMessage(`{"color":"red","category":"shoes"}`)}},
	})
	blocks = b.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("blocks = %+v", blocks)
	}
	want := "Function: filter_products\nArguments:\n{\n  \"category\": \"shoes\",\n  \"color\": \"red\"\n}"
	if got := blocks[1].String(); got != want {
		t.Errorf("call block =\n%s\nwant\n%s", got, want)
	}
}

func TestMultipleCallsKeepOrder(t *testing.T) {
	var b Board
	b.AddPlaceholder(dispatch.PendingCall{ID: "a", Text: "x"})
	b.Complete(dispatch.PendingCall{
		ID:     "a",
		Status: dispatch.Succeeded,
		Results: []dispatch.FunctionCall{
			{Name: "first", Arguments: json.RawMessage(`{}`)},
			{Name: "second", Arguments: json.RawMessage(`{}`)},
		},
	})
	blocks := b.Blocks()
	if len(blocks) != 2 || blocks[0].Name != "first" || blocks[1].Name != "second" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestErrorBlock(t *testing.T) {
	var b Board
	b.AddPlaceholder(dispatch.PendingCall{ID: "a", Text: "x"})
	err := &dispatch.BackendError{StatusCode: 503}
	b.Complete(dispatch.PendingCall{ID: "a", Status: dispatch.Failed, Message: dispatch.ErrorMessage(err)})
	if got := b.String(); got != "Error during function call processing: Backend error: 503" {
		t.Errorf("String() = %q", got)
	}
}

func TestFormatArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"nested", `{"z":{"b":2,"a":1},"max_price":50}`, "{\n  \"max_price\": 50,\n  \"z\": {\n    \"a\": 1,\n    \"b\": 2\n  }\n}"},
		{"big int", `{"n":12345678901234567890}`, "{\n  \"n\": 12345678901234567890\n}"},
		{"empty", ``, "{}"},
		{"invalid", `{oops`, `{oops`},
		{"array", `["b","a"]`, "[\n  \"b\",\n  \"a\"\n]"},
		{"html characters", `{"keywords":"shoes < $50 & socks","color":"black & white >"}`, "{\n  \"color\": \"black & white >\",\n  \"keywords\": \"shoes < $50 & socks\"\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatArguments([]byte(tt.raw)); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestClear(t *testing.T) {
	var b Board
	b.AddPlaceholder(dispatch.PendingCall{ID: "a", Text: "x"})
	b.Clear()
	if !b.Empty() {
		t.Error("board not empty")
	}
}
