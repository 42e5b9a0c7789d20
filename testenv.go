package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"voxcall/audio"
	"voxcall/beep"
	"voxcall/clipboard"
	"voxcall/dispatch"
	"voxcall/hotkey"
	"voxcall/log"
	"voxcall/render"
	"voxcall/speech"
)

// lineSink prints each new status line, for headless runs.
type lineSink struct {
	w    io.Writer
	last string
}

func (s *lineSink) Update(snap Snapshot) {
	if snap.Status == s.last {
		return
	}
	s.last = snap.Status
	fmt.Fprintf(s.w, "status: %s\n", snap.Status)
}

func printSnapshot(w io.Writer, snap Snapshot) {
	fmt.Fprintf(w, "transcript: %s\n", snap.Transcript)
	fmt.Fprintln(w, render.Text(snap.Blocks))
	fmt.Fprintln(w, "--")
}

type testEnv struct {
	app    *app
	script *speech.Script
	mic    *audio.FakeContext
	clip   *clipboard.Memory
	hk     *hotkey.Fake
	out    io.Writer
}

// runTestMode drives the app from stdin instead of a microphone, a
// terminal and a keyboard. One command per line:
//
//	START | STOP | TOGGLE | RESET | COPY       controls
//	PRESS | RELEASE                            global hotkey
//	DENY | ALLOW                               microphone permission
//	PARTIAL <text> | FINAL <text>[|<text>...]  recognition results
//	ERROR <kind> | END                         recognition errors and end
//	WAIT | SLEEP <ms> | PRINT | QUIT
func runTestMode(ctx context.Context, in io.Reader, out io.Writer, backend *dispatch.Client, lang string) error {
	beep.Disable()

	env, err := newTestEnv(backend, lang, out)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := env.start(ctx)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quit, err := env.exec(ctx, line)
		if err != nil {
			log.Warnf("test mode: %v", err)
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			break
		}
	}

	env.wait(ctx)
	if snap, ok := env.app.snapshot(ctx); ok {
		printSnapshot(out, snap)
	}
	env.app.send(ctx, cmdQuit)
	<-done
	return scanner.Err()
}

func newTestEnv(backend *dispatch.Client, lang string, out io.Writer) (*testEnv, error) {
	mic, err := audio.NewFakeContext("")
	if err != nil {
		return nil, err
	}
	env := &testEnv{
		script: speech.NewScript(),
		mic:    mic,
		clip:   &clipboard.Memory{},
		hk:     hotkey.NewFake(),
		out:    out,
	}
	env.app = newApp(appConfig{
		Source:   env.script,
		Speech:   speech.Config{Continuous: true, InterimResults: true, Language: lang},
		Audio:    mic,
		Backend:  backend,
		Endpoint: backend.URL(),
		Clip:     env.clip,
		Sink:     &lineSink{w: out},
	})
	return env, nil
}

// start runs the app loop and the hotkey gestures until ctx is done. The
// returned channel closes when the loop has exited.
func (e *testEnv) start(ctx context.Context) <-chan struct{} {
	gestures := hotkey.NewGestures(e.hk, hotkeyLongPress)
	go forwardGestures(ctx, e.app, gestures)

	done := make(chan struct{})
	go func() {
		e.app.loop(ctx)
		gestures.Close()
		close(done)
	}()
	return done
}

func (e *testEnv) exec(ctx context.Context, line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch strings.ToUpper(cmd) {
	case "START":
		e.control(ctx, cmdStart)
	case "STOP":
		e.control(ctx, cmdStop)
	case "TOGGLE":
		e.control(ctx, cmdToggle)
	case "RESET":
		e.control(ctx, cmdReset)
	case "COPY":
		e.control(ctx, cmdCopy)
		fmt.Fprintf(e.out, "clipboard: %s\n", e.clip.Text)
	case "PRESS":
		e.hk.Press()
	case "RELEASE":
		e.hk.Release()
	case "DENY":
		e.mic.SetDeny(errors.New("microphone blocked"))
	case "ALLOW":
		e.mic.SetDeny(nil)
	case "PARTIAL":
		e.script.Partial(arg)
		e.settle(ctx)
	case "FINAL":
		e.script.Final(strings.Split(arg, "|")...)
		e.settle(ctx)
	case "ERROR":
		e.script.Fail(arg)
		e.settle(ctx)
	case "END":
		e.script.End()
		e.settle(ctx)
	case "WAIT":
		e.wait(ctx)
	case "SLEEP":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("bad SLEEP argument %q", arg)
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	case "PRINT":
		if snap, ok := e.settle(ctx); ok {
			printSnapshot(e.out, snap)
		}
	case "QUIT":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", line)
	}
	return false, nil
}

// control sends a command and waits until the loop has handled it, so
// scripted speech that follows lands in the session it started.
func (e *testEnv) control(ctx context.Context, c command) {
	e.app.send(ctx, c)
	e.settle(ctx)
}

// settle returns once every queued command and speech event has been
// handled. The loop serves the snapshot query only after finishing the
// event it was working on.
func (e *testEnv) settle(ctx context.Context) (Snapshot, bool) {
	for len(e.app.cmds) > 0 || len(e.script.Events()) > 0 {
		select {
		case <-ctx.Done():
			return Snapshot{}, false
		case <-time.After(5 * time.Millisecond):
		}
	}
	return e.app.snapshot(ctx)
}

// wait is settle plus no outstanding backend call.
func (e *testEnv) wait(ctx context.Context) {
	for {
		snap, ok := e.settle(ctx)
		if !ok || snap.Pending == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
