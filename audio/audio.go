// Package audio opens microphone capture devices. Capture is used both to
// verify microphone access before a listening session starts and to feed
// PCM to streaming speech sources.
package audio

import (
	"errors"
	"fmt"
)

const (
	WAVHeaderSize = 44

	SampleRate = 16000
	Channels   = 1
)

// ErrPermission reports that the microphone could not be opened.
var ErrPermission = errors.New("microphone access denied")

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DefaultCaptureConfig is PCM16 mono at 16 kHz.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Probe opens the device, starts and immediately releases it. A failure
// wraps ErrPermission.
func Probe(ctx Context, device *DeviceInfo) error {
	capture, err := ctx.NewCapture(device, DefaultCaptureConfig())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	defer capture.Close()
	if err := capture.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	capture.Stop()
	return nil
}

// FindDevice returns the device with the given name, or nil for the system
// default when name is empty.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}
