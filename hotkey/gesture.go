package hotkey

import "time"

type Action int

const (
	// Toggle starts listening when idle and stops it otherwise.
	Toggle Action = iota
	// HoldEnd is sent when a press held past the threshold is released;
	// the listener stops if it is still running.
	HoldEnd
)

func (a Action) String() string {
	if a == HoldEnd {
		return "hold-end"
	}
	return "toggle"
}

// Gestures turns raw presses into actions: a short tap toggles, a long
// hold works as push-to-talk. It keeps no listening state of its own, so it
// cannot drift from the recognizer when a session ends for other reasons.
type Gestures struct {
	actions chan Action
	stop    chan struct{}
}

func NewGestures(hk Hotkey, longPress time.Duration) *Gestures {
	g := &Gestures{
		actions: make(chan Action, 4),
		stop:    make(chan struct{}),
	}
	go g.run(hk, longPress)
	return g
}

func (g *Gestures) Actions() <-chan Action { return g.actions }

func (g *Gestures) Close() { close(g.stop) }

func (g *Gestures) send(a Action) {
	select {
	case g.actions <- a:
	case <-g.stop:
	}
}

func (g *Gestures) run(hk Hotkey, longPress time.Duration) {
	for {
		select {
		case <-hk.Keydown():
		case <-g.stop:
			return
		}
		g.send(Toggle)

		timer := time.NewTimer(longPress)
		select {
		case <-hk.Keyup():
			timer.Stop()
		case <-timer.C:
			select {
			case <-hk.Keyup():
				g.send(HoldEnd)
			case <-g.stop:
				return
			}
		case <-g.stop:
			timer.Stop()
			return
		}
	}
}
