package audio

import (
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays PCM from a WAV file, or silence, in real time. After
// SetDeny every capture fails to start, as a blocked microphone would.
type FakeContext struct {
	pcm []byte

	mu   sync.Mutex
	deny error
}

func (f *FakeContext) SetDeny(err error) {
	f.mu.Lock()
	f.deny = err
	f.mu.Unlock()
}

func NewFakeContext(wavPath string) (*FakeContext, error) {
	if wavPath == "" {
		return &FakeContext{}, nil
	}
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &FakeCapture{pcm: f.pcm, deny: f.deny}, nil
}

type FakeCapture struct {
	pcm  []byte
	deny error

	mu     sync.Mutex
	cb     DataCallback
	stopCh chan struct{}
	done   chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) Start() error {
	if f.deny != nil {
		return f.deny
	}
	f.stopCh = make(chan struct{})
	f.done = make(chan struct{})
	stop, done := f.stopCh, f.done

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(SampleRate)
	go func() {
		defer close(done)
		silence := make([]byte, chunkBytes)
		pos := 0
		for {
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb == nil {
				continue
			}
			chunk := silence
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				chunk = make([]byte, end-pos)
				copy(chunk, f.pcm[pos:end])
				pos = end
			}
			cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.done
}

func (f *FakeCapture) Close() { f.Stop() }
