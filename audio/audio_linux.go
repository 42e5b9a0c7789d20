//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

// recordLatency is the PulseAudio fragment size in seconds.
const recordLatency = 0.05

type pulseContext struct {
	client *pulse.Client
}

// NewContext connects to the PulseAudio (or PipeWire-pulse) server.
func NewContext() (Context, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	opts, err := recordOptions(p.client, device, config)
	if err != nil {
		return nil, err
	}
	return &pulseCapture{client: p.client, device: device, opts: opts}, nil
}

func (p *pulseContext) Close() { p.client.Close() }

// recordOptions resolves the source up front so an unplugged device fails
// at NewCapture rather than mid-session.
func recordOptions(client *pulse.Client, device *DeviceInfo, config CaptureConfig) ([]pulse.RecordOption, error) {
	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(int(config.SampleRate)),
		pulse.RecordLatency(recordLatency),
	}
	if device == nil {
		return opts, nil
	}
	source, err := client.SourceByID(device.ID)
	if err != nil {
		return nil, fmt.Errorf("pulse source %s: %w", device.Name, err)
	}
	return append(opts, pulse.RecordSource(source)), nil
}

// pcm16 encodes samples as little-endian PCM16.
func pcm16(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

type pulseCapture struct {
	client *pulse.Client
	device *DeviceInfo
	opts   []pulse.RecordOption
	cb     atomic.Pointer[DataCallback]

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (c *pulseCapture) write(buf []int16) (int, error) {
	if cb := c.cb.Load(); cb != nil && len(buf) > 0 {
		(*cb)(pcm16(buf), uint32(len(buf)))
	}
	return len(buf), nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}
	stream, err := c.client.NewRecord(pulse.Int16Writer(c.write), c.opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	c.stream = stream
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream.Close()
	c.stream = nil
}

func (c *pulseCapture) Close() { c.Stop() }

func (c *pulseCapture) SetCallback(cb DataCallback) { c.cb.Store(&cb) }

func (c *pulseCapture) ClearCallback() { c.cb.Store(nil) }

func (c *pulseCapture) DeviceName() string {
	if c.device == nil {
		return "system default"
	}
	return c.device.Name
}
