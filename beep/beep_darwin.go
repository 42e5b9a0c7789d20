//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	rendered  map[Cue][]byte
	soundOnce sync.Once

	// read from the device callback
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	rendered = make(map[Cue][]byte, len(tones))
	for c := range tones {
		rendered[c] = toBytes(samples(c, 1))
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	s := playing.Load()
	var n uint32
	if s != nil {
		pos := playPos.Load()
		n = min(want, uint32(len(*s))-pos)
		copy(out[:n], (*s)[pos:pos+n])
		playPos.Store(pos + n)
		if n == 0 {
			playing.Store(nil)
		}
	}
	clear(out[n:want])
}

func play(c Cue) {
	soundOnce.Do(initSound)
	if malgoCtx == nil {
		return
	}
	s := rendered[c]

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	playPos.Store(0)
	playing.Store(&s)

	if err := device.Start(); err != nil {
		// the device goes stale across sleep/wake; recreate it once
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
