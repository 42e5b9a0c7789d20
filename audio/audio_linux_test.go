//go:build linux

package audio

import (
	"bytes"
	"testing"
)

func TestPCM16(t *testing.T) {
	got := pcm16([]int16{0, 1, -1, 32767, -32768})
	want := []byte{0x00, 0x00, 0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("pcm16 = % x, want % x", got, want)
	}
}

func TestPulseCaptureWrite(t *testing.T) {
	var c pulseCapture
	if n, _ := c.write([]int16{1, 2}); n != 2 {
		t.Fatalf("write without callback = %d", n)
	}

	var frames uint32
	var data []byte
	c.SetCallback(func(d []byte, n uint32) {
		data, frames = d, n
	})
	c.write([]int16{256, -2})
	if frames != 2 || !bytes.Equal(data, []byte{0x00, 0x01, 0xfe, 0xff}) {
		t.Errorf("callback got frames=%d data=% x", frames, data)
	}

	c.ClearCallback()
	data = nil
	c.write([]int16{5})
	if data != nil {
		t.Error("callback ran after ClearCallback")
	}
	if c.DeviceName() != "system default" {
		t.Errorf("device name = %q", c.DeviceName())
	}
}
