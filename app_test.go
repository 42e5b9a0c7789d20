package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"voxcall/beep"
	"voxcall/dispatch"
	"voxcall/recognizer"
	"voxcall/render"
	"voxcall/speech"
)

func init() {
	beep.Disable()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeBackend answers /process-text through reply, keyed by the request
// text. Requests are recorded in order of arrival.
type fakeBackend struct {
	mu    sync.Mutex
	texts []string
	reply func(text string, w http.ResponseWriter)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	body, _ := io.ReadAll(r.Body)
	json.Unmarshal(body, &req)
	f.mu.Lock()
	f.texts = append(f.texts, req.Text)
	f.mu.Unlock()
	f.reply(req.Text, w)
}

func (f *fakeBackend) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func startEnv(t *testing.T, reply func(text string, w http.ResponseWriter)) (*testEnv, *fakeBackend, *syncBuffer) {
	t.Helper()
	fb := &fakeBackend{reply: reply}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	out := &syncBuffer{}
	env, err := newTestEnv(dispatch.NewClient(srv.URL, 0), "en-US", out)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := env.start(ctx)
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return env, fb, out
}

func (e *testEnv) run(t *testing.T, lines ...string) Snapshot {
	t.Helper()
	ctx := context.Background()
	for _, l := range lines {
		if _, err := e.exec(ctx, l); err != nil {
			t.Fatalf("%s: %v", l, err)
		}
	}
	snap, ok := e.settle(ctx)
	if !ok {
		t.Fatal("no snapshot")
	}
	return snap
}

func eventually(t *testing.T, e *testEnv, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, _ := e.app.snapshot(context.Background())
		if cond(snap) {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
	return Snapshot{}
}

func replyJSON(body string) func(string, http.ResponseWriter) {
	return func(_ string, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func TestScenarioSingleCall(t *testing.T) {
	env, fb, _ := startEnv(t, replyJSON(`[{"function_name":"open_door","arguments":{}}]`))

	snap := env.run(t, "START", "FINAL open the door", "WAIT")

	if got := fb.requests(); len(got) != 1 || got[0] != "open the door" {
		t.Fatalf("requests = %q", got)
	}
	if len(snap.Blocks) != 1 {
		t.Fatalf("blocks = %+v", snap.Blocks)
	}
	blk := snap.Blocks[0]
	if blk.Kind != render.Call || blk.Name != "open_door" || blk.Arguments != "{}" {
		t.Errorf("block = %+v", blk)
	}
	if snap.Status != statusCallsFound {
		t.Errorf("status = %q", snap.Status)
	}
	if snap.Transcript != "open the door. " {
		t.Errorf("transcript = %q", snap.Transcript)
	}
}

func TestScenarioNoCall(t *testing.T) {
	env, _, _ := startEnv(t, replyJSON(`[]`))
	snap := env.run(t, "START", "FINAL hello there", "WAIT")

	if len(snap.Blocks) != 1 || !strings.Contains(snap.Blocks[0].Title(), "No function call.") {
		t.Fatalf("blocks = %+v", snap.Blocks)
	}
	if snap.Transcript != "hello there. " {
		t.Errorf("transcript = %q", snap.Transcript)
	}
	if snap.Status != statusNoCall {
		t.Errorf("status = %q", snap.Status)
	}
}

func TestScenarioBackendError(t *testing.T) {
	env, _, _ := startEnv(t, func(_ string, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"model unavailable"}`)
	})
	snap := env.run(t, "START", "FINAL show me shoes", "WAIT")

	if len(snap.Blocks) != 1 || snap.Blocks[0].Kind != render.Error {
		t.Fatalf("blocks = %+v", snap.Blocks)
	}
	if !strings.Contains(snap.Blocks[0].Title(), "model unavailable") {
		t.Errorf("error block = %q", snap.Blocks[0].Title())
	}
	if snap.Status != "Function call error: model unavailable" {
		t.Errorf("status = %q", snap.Status)
	}
}

func TestScenarioNotAllowed(t *testing.T) {
	env, fb, _ := startEnv(t, replyJSON(`[]`))
	snap := env.run(t, "START", "PARTIAL open", "ERROR not-allowed")

	if snap.Listening {
		t.Error("still listening after error")
	}
	if snap.Status != recognizer.StatusNotAllowed {
		t.Errorf("status = %q", snap.Status)
	}
	if len(fb.requests()) != 0 || len(snap.Blocks) != 0 {
		t.Errorf("error produced a dispatch")
	}
}

func TestErrorsAlwaysIdle(t *testing.T) {
	for _, kind := range []string{"no-speech", "audio-capture", "not-allowed", "network", "aborted"} {
		t.Run(kind, func(t *testing.T) {
			env, _, _ := startEnv(t, replyJSON(`[]`))
			snap := env.run(t, "START", "ERROR "+kind)
			if snap.Listening {
				t.Error("still listening")
			}
			if env.script.Running() {
				t.Error("source not stopped")
			}
		})
	}
}

func TestSlowAndFastCompletions(t *testing.T) {
	release := make(chan struct{})
	env, _, _ := startEnv(t, func(text string, w http.ResponseWriter) {
		if text == "slow one" {
			<-release
		}
		io.WriteString(w, `[{"function_name":"f","arguments":{"text":"`+text+`"}}]`)
	})
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	env.run(t, "START")
	env.script.Final("slow one")
	env.script.Final("fast one")

	snap := eventually(t, env, func(s Snapshot) bool {
		return len(s.Blocks) == 2 && s.Blocks[1].Kind == render.Call
	})
	if snap.Blocks[0].Kind != render.Placeholder || snap.Blocks[0].Text != "slow one" {
		t.Fatalf("slow placeholder missing: %+v", snap.Blocks)
	}
	if !strings.Contains(snap.Blocks[1].Arguments, "fast one") {
		t.Fatalf("fast result = %+v", snap.Blocks[1])
	}

	close(release)
	snap = env.run(t, "WAIT")
	if len(snap.Blocks) != 2 {
		t.Fatalf("blocks = %+v", snap.Blocks)
	}
	if !strings.Contains(snap.Blocks[1].Arguments, "slow one") || !strings.Contains(snap.Blocks[0].Arguments, "fast one") {
		t.Errorf("order = %s / %s", snap.Blocks[0].Arguments, snap.Blocks[1].Arguments)
	}
}

func TestEmptyFinalsNeverDispatch(t *testing.T) {
	env, fb, _ := startEnv(t, replyJSON(`[]`))
	snap := env.run(t, "START", "FINAL    ", "FINAL  |  ")
	if len(fb.requests()) != 0 || len(snap.Blocks) != 0 {
		t.Errorf("requests = %q, blocks = %+v", fb.requests(), snap.Blocks)
	}
	if snap.Transcript != "" {
		t.Errorf("transcript = %q", snap.Transcript)
	}
}

func TestBatchOfFinalsDispatchesEach(t *testing.T) {
	env, fb, _ := startEnv(t, replyJSON(`[]`))
	snap := env.run(t, "START", "FINAL red shoes|blue hats", "WAIT")
	if got := fb.requests(); len(got) != 2 {
		t.Fatalf("requests = %q", got)
	}
	if snap.Transcript != "red shoes. blue hats. " {
		t.Errorf("transcript = %q", snap.Transcript)
	}
	if len(snap.Blocks) != 2 {
		t.Errorf("blocks = %+v", snap.Blocks)
	}
}

// Segments before ResultIndex were delivered in an earlier batch and must
// not be dispatched again.
func TestMixedBatchSkipsDeliveredSegments(t *testing.T) {
	env, fb, _ := startEnv(t, replyJSON(`[]`))
	env.run(t, "START")
	env.script.Emit(speech.Event{
		Type:        speech.EventResult,
		ResultIndex: 1,
		Results: []speech.Segment{
			{Transcript: "old", IsFinal: true},
			{Transcript: "red shoes", IsFinal: true},
			{Transcript: "under fifty"},
		},
	})
	snap := env.run(t, "WAIT")
	if got := fb.requests(); len(got) != 1 || got[0] != "red shoes" {
		t.Fatalf("requests = %q", got)
	}
	if snap.Transcript != "red shoes. under fifty" {
		t.Errorf("transcript = %q", snap.Transcript)
	}
}

func TestRestartClearsEverything(t *testing.T) {
	release := make(chan struct{})
	env, _, _ := startEnv(t, func(text string, w http.ResponseWriter) {
		if text == "pending" {
			<-release
		}
		io.WriteString(w, `[]`)
	})
	defer close(release)

	env.run(t, "START", "FINAL first", "FINAL pending", "STOP")
	eventually(t, env, func(s Snapshot) bool {
		return len(s.Blocks) == 2 && s.Blocks[1].Kind == render.NoCall
	})

	snap := env.run(t, "START")
	if snap.Transcript != "" || len(snap.Blocks) != 0 || snap.Pending != 0 {
		t.Fatalf("restart left %+v", snap)
	}
	if !snap.Listening {
		t.Error("not listening after restart")
	}
}

func TestPermissionDenied(t *testing.T) {
	env, _, _ := startEnv(t, replyJSON(`[]`))
	snap := env.run(t, "DENY", "START")
	if snap.Listening || env.script.Starts() != 0 {
		t.Error("started without permission")
	}
	if snap.Status != recognizer.StatusPermissionDenied {
		t.Errorf("status = %q", snap.Status)
	}
	snap = env.run(t, "ALLOW", "START")
	if !snap.Listening || snap.Status != recognizer.StatusListening {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStopStatus(t *testing.T) {
	env, _, out := startEnv(t, replyJSON(`[]`))
	snap := env.run(t, "START", "STOP")
	if snap.Status != recognizer.StatusStopped || snap.Listening {
		t.Errorf("snapshot = %+v", snap)
	}
	if n := strings.Count(out.String(), "status: "+recognizer.StatusStopped); n != 1 {
		t.Errorf("stop reported %d times:\n%s", n, out.String())
	}

	snap = env.run(t, "START", "END")
	if snap.Status != recognizer.StatusStopped || snap.Listening {
		t.Errorf("after engine end: %+v", snap)
	}
}

func TestResetDropsPending(t *testing.T) {
	release := make(chan struct{})
	env, _, _ := startEnv(t, func(_ string, w http.ResponseWriter) {
		<-release
		io.WriteString(w, `[{"function_name":"late","arguments":{}}]`)
	})

	env.run(t, "START", "FINAL something")
	snap := env.run(t, "RESET")
	close(release)
	if snap.Status != recognizer.StatusCleared || snap.Listening || len(snap.Blocks) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}

	time.Sleep(100 * time.Millisecond)
	snap = env.run(t)
	if len(snap.Blocks) != 0 {
		t.Errorf("late completion rendered: %+v", snap.Blocks)
	}
}

func TestCopy(t *testing.T) {
	env, _, out := startEnv(t, replyJSON(`[]`))

	snap := env.run(t, "COPY")
	if snap.Status != statusNothingToCopy {
		t.Errorf("empty copy status = %q", snap.Status)
	}

	snap = env.run(t, "START", "FINAL red shoes", "PARTIAL and", "COPY")
	if snap.Status != statusCopied {
		t.Errorf("status = %q", snap.Status)
	}
	if env.clip.Text != "red shoes. and" {
		t.Errorf("clipboard = %q", env.clip.Text)
	}
	if !strings.Contains(out.String(), "clipboard: red shoes. and") {
		t.Errorf("output = %s", out.String())
	}
}

func TestHotkeyToggle(t *testing.T) {
	env, _, _ := startEnv(t, replyJSON(`[]`))
	env.hk.Press()
	env.hk.Release()
	eventually(t, env, func(s Snapshot) bool { return s.Listening })

	time.Sleep(20 * time.Millisecond)
	env.hk.Press()
	env.hk.Release()
	eventually(t, env, func(s Snapshot) bool { return !s.Listening })
}

func TestRunTestMode(t *testing.T) {
	srv := httptest.NewServer(&fakeBackend{reply: replyJSON(`[{"function_name":"filter_products","arguments":{"color":"red","category":"shoes"}}]`)})
	defer srv.Close()

	in := strings.NewReader(strings.Join([]string{
		"# comment",
		"START",
		"PARTIAL red",
		"FINAL red shoes",
		"WAIT",
		"STOP",
		"QUIT",
	}, "\n"))
	out := &syncBuffer{}
	if err := runTestMode(context.Background(), in, out, dispatch.NewClient(srv.URL, 0), "en-US"); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{
		"status: " + statusReady,
		"status: " + recognizer.StatusListening,
		"status: " + statusCallsFound,
		"status: " + recognizer.StatusStopped,
		"transcript: red shoes. ",
		"Function: filter_products",
		"  \"category\": \"shoes\",",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello world again", 11, []string{"hello", "world again"}},
		{"héllo wörld", 6, []string{"héllo", "wörld"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}
