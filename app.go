package main

import (
	"context"
	"errors"

	"voxcall/audio"
	"voxcall/beep"
	"voxcall/clipboard"
	"voxcall/dispatch"
	"voxcall/log"
	"voxcall/recognizer"
	"voxcall/render"
	"voxcall/speech"
)

const (
	statusReady         = "Ready. Press space to start listening."
	statusCopied        = "Transcript copied to clipboard!"
	statusCopyFailed    = "Failed to copy."
	statusNothingToCopy = "Nothing in transcript to copy."
	statusCallsFound    = "Function call(s) received from backend."
	statusNoCall        = "No function call identified by AI."
)

type command int

const (
	cmdToggle command = iota
	cmdStart
	cmdStop
	cmdHoldEnd
	cmdReset
	cmdCopy
	cmdQuit
)

func (c command) String() string {
	return [...]string{"toggle", "start", "stop", "hold-end", "reset", "copy", "quit"}[c]
}

// Snapshot is an immutable copy of everything the display needs.
type Snapshot struct {
	Listening  bool
	Status     string
	Transcript string
	Blocks     []render.Block
	Pending    int
	Source     string
	Language   string
	Backend    string
	Device     string
}

// Sink receives a snapshot after every state change. Update is called on
// the loop goroutine and must not block.
type Sink interface {
	Update(Snapshot)
}

type appConfig struct {
	Source   speech.Source
	Speech   speech.Config
	Audio    audio.Context // nil skips the microphone check
	Device   *audio.DeviceInfo
	Backend  dispatch.Backend
	Endpoint string
	Clip     clipboard.Writer
	Sink     Sink
}

// app owns the recognizer, the dispatcher, the result board and the status
// line. All of them are touched only by the goroutine running loop.
type app struct {
	cfg      appConfig
	machine  *recognizer.Machine
	dispatch *dispatch.Dispatcher
	board    render.Board
	status   string
	ctx      context.Context

	cmds    chan command
	queries chan chan Snapshot
}

func newApp(cfg appConfig) *app {
	return &app{
		cfg:     cfg,
		machine: recognizer.New(),
		status:  statusReady,
		cmds:    make(chan command, 16),
		queries: make(chan chan Snapshot),
	}
}

// send queues a control command. It gives up when ctx is done.
func (a *app) send(ctx context.Context, c command) {
	select {
	case a.cmds <- c:
	case <-ctx.Done():
	}
}

// snapshot asks the loop for its current state.
func (a *app) snapshot(ctx context.Context) (Snapshot, bool) {
	reply := make(chan Snapshot, 1)
	select {
	case a.queries <- reply:
	case <-ctx.Done():
		return Snapshot{}, false
	}
	select {
	case s := <-reply:
		return s, true
	case <-ctx.Done():
		return Snapshot{}, false
	}
}

// loop runs until ctx is done or a quit command arrives.
func (a *app) loop(ctx context.Context) {
	a.ctx = ctx
	a.dispatch = dispatch.New(ctx, a.cfg.Backend)
	log.SessionStart(a.cfg.Source.Name(), a.cfg.Endpoint, a.cfg.Speech.Language)
	defer a.shutdown()

	a.publish()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.cfg.Source.Events():
			a.onSpeech(ev)
		case c := <-a.dispatch.Completions():
			a.onCompletion(c)
		case cmd := <-a.cmds:
			if cmd == cmdQuit {
				return
			}
			a.onCommand(cmd)
		case reply := <-a.queries:
			reply <- a.current()
		}
	}
}

func (a *app) shutdown() {
	if a.machine.Listening() {
		a.cfg.Source.Stop()
	}
	log.SessionEnd(a.machine.Utterances(), a.dispatch.Calls())
}

func (a *app) onCommand(cmd command) {
	log.Debugf("command %s", cmd)
	switch cmd {
	case cmdToggle:
		if a.machine.Listening() {
			a.stop()
		} else {
			a.start()
		}
	case cmdStart:
		a.start()
	case cmdStop, cmdHoldEnd:
		a.stop()
	case cmdReset:
		a.apply(a.machine.Reset())
	case cmdCopy:
		a.copyTranscript()
	}
}

func (a *app) start() {
	if a.machine.Listening() {
		return
	}
	var probeErr error
	if a.cfg.Audio != nil {
		probeErr = audio.Probe(a.cfg.Audio, a.cfg.Device)
		if probeErr != nil {
			log.Warnf("microphone check failed: %v", probeErr)
		}
	}
	eff := a.machine.Start(probeErr)
	a.apply(eff)
	if !eff.StartSource {
		if probeErr != nil {
			beep.Play(beep.Error)
		}
		return
	}
	if err := a.cfg.Source.Start(a.ctx, a.cfg.Speech); err != nil {
		log.Errorf("speech source start: %v", err)
		beep.Play(beep.Error)
		a.apply(a.machine.Abort("Speech recognition error: " + err.Error()))
	}
}

func (a *app) stop() {
	eff := a.machine.Stop()
	if eff.StopSource {
		beep.Play(beep.Stop)
	}
	a.apply(eff)
}

func (a *app) copyTranscript() {
	err := clipboard.Copy(a.cfg.Clip, a.machine.Display())
	switch {
	case err == nil:
		a.setStatus(statusCopied)
	case errors.Is(err, clipboard.ErrEmpty):
		a.setStatus(statusNothingToCopy)
	default:
		log.Errorf("clipboard: %v", err)
		a.setStatus(statusCopyFailed)
	}
	a.publish()
}

func (a *app) onSpeech(ev speech.Event) {
	s := a.machine.Session()
	if s.State == recognizer.Idle && !s.StopRequested {
		log.Debugf("ignoring %s event while idle", ev.Type)
		return
	}

	switch ev.Type {
	case speech.EventStart:
		beep.Play(beep.Start)
	case speech.EventError:
		log.Warnf("speech error: %s", ev.Error)
		if s.State == recognizer.Listening {
			beep.Play(beep.Error)
		}
	case speech.EventEnd:
		if s.State == recognizer.Listening {
			beep.Play(beep.Stop)
		}
	}

	a.apply(a.machine.Apply(recognizer.Translate(ev)))
}

func (a *app) onCompletion(c dispatch.Completion) {
	pc, ok := a.dispatch.Resolve(c)
	if !ok {
		return
	}
	a.board.Complete(pc)
	switch {
	case pc.Status == dispatch.Failed:
		a.setStatus("Function call error: " + pc.Message)
	case len(pc.Results) == 0:
		a.setStatus(statusNoCall)
	default:
		a.setStatus(statusCallsFound)
	}
	a.publish()
}

// apply carries out the effects of a recognizer transition.
func (a *app) apply(eff recognizer.Effects) {
	if eff.Cleared {
		if n := a.dispatch.Reset(); n > 0 {
			log.Infof("dropped %d pending calls", n)
		}
		a.board.Clear()
	}
	if eff.StopSource {
		a.cfg.Source.Stop()
	}
	for _, u := range eff.Utterances {
		log.Utterance(u.Text)
		if pc, ok := a.dispatch.Dispatch(u.Text); ok {
			a.board.AddPlaceholder(pc)
		}
	}
	if eff.Status != "" {
		a.setStatus(eff.Status)
	}
	if eff.Refresh || eff.Status != "" || len(eff.Utterances) > 0 {
		a.publish()
	}
}

func (a *app) setStatus(msg string) {
	a.status = msg
	log.Status(msg)
}

func (a *app) current() Snapshot {
	device := "system default"
	if a.cfg.Device != nil {
		device = a.cfg.Device.Name
	}
	return Snapshot{
		Listening:  a.machine.Listening(),
		Status:     a.status,
		Transcript: a.machine.Display(),
		Blocks:     a.board.Blocks(),
		Pending:    a.dispatch.Pending(),
		Source:     a.cfg.Source.Name(),
		Language:   a.cfg.Speech.Language,
		Backend:    a.cfg.Endpoint,
		Device:     device,
	}
}

func (a *app) publish() {
	if a.cfg.Sink != nil {
		a.cfg.Sink.Update(a.current())
	}
}
