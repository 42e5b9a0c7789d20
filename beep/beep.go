// Package beep plays short audio cues when listening starts, stops or
// fails.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	Stop
	Error
)

const sampleRate = 44100

type tone struct {
	freq     float64
	volume   float64
	decay    float64
	duration float64 // seconds per beep
	gap      float64 // seconds between the two beeps of a double cue; 0 for a single beep
}

var tones = map[Cue]tone{
	Start: {freq: 1200, volume: 0.5, decay: 60, duration: 0.12},
	Stop:  {freq: 900, volume: 0.5, decay: 40, duration: 0.15},
	Error: {freq: 350, volume: 0.6, decay: 30, duration: 0.08, gap: 0.05},
}

var disabled atomic.Bool

// Disable silences every cue. Used by -test mode.
func Disable() { disabled.Store(true) }

// Play starts the cue and returns without waiting for it to finish.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(c)
}

func tick(t tone, channels int) []int16 {
	n := int(sampleRate * t.duration)
	out := make([]int16, n*channels)
	for i := 0; i < n; i++ {
		x := float64(i) / sampleRate
		s := int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * math.Exp(-x*t.decay))
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = s
		}
	}
	return out
}

// samples renders a cue as interleaved 16-bit PCM.
func samples(c Cue, channels int) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	beep := tick(t, channels)
	if t.gap == 0 {
		return beep
	}
	gap := make([]int16, int(sampleRate*t.gap)*channels)
	out := make([]int16, 0, 2*len(beep)+len(gap))
	out = append(out, beep...)
	out = append(out, gap...)
	return append(out, beep...)
}

func toBytes(s []int16) []byte {
	buf := make([]byte, len(s)*2)
	for i, v := range s {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return buf
}
