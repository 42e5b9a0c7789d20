//go:build linux

package hotkey

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestComboFeed(t *testing.T) {
	type key struct {
		code  uint16
		value int32
	}
	tests := []struct {
		name  string
		keys  []key
		downs int
		ups   int
	}{
		{"full combo", []key{{keyLCtrl, 1}, {keyLShift, 1}, {keySpace, 1}, {keySpace, 0}}, 1, 1},
		{"space alone", []key{{keySpace, 1}, {keySpace, 0}}, 0, 0},
		{"ctrl only", []key{{keyRCtrl, 1}, {keySpace, 1}, {keySpace, 0}}, 0, 0},
		{"autorepeat", []key{{keyLCtrl, 1}, {keyRShift, 1}, {keySpace, 1}, {keySpace, 2}, {keySpace, 2}, {keySpace, 0}}, 1, 1},
		{"modifier released first", []key{{keyLCtrl, 1}, {keyLShift, 1}, {keySpace, 1}, {keyLCtrl, 0}, {keySpace, 0}}, 1, 1},
		{"ctrl released before", []key{{keyLCtrl, 1}, {keyLShift, 1}, {keyLCtrl, 0}, {keySpace, 1}}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c combo
			var downs, ups int
			for _, k := range tt.keys {
				d, u := c.feed(k.code, k.value)
				if d {
					downs++
				}
				if u {
					ups++
				}
			}
			if downs != tt.downs || ups != tt.ups {
				t.Errorf("downs=%d ups=%d, want %d %d", downs, ups, tt.downs, tt.ups)
			}
		})
	}
}

func putEvent(buf []byte, typ, code uint16, value int32) []byte {
	ev := make([]byte, eventSize)
	binary.LittleEndian.PutUint16(ev[eventTypeAt:], typ)
	binary.LittleEndian.PutUint16(ev[eventCodeAt:], code)
	binary.LittleEndian.PutUint32(ev[eventValAt:], uint32(value))
	return append(buf, ev...)
}

func TestDecodeKeys(t *testing.T) {
	var buf []byte
	buf = putEvent(buf, evKey, keyLCtrl, valueDown)
	buf = putEvent(buf, 0, 0, 0) // EV_SYN
	buf = putEvent(buf, evKey, keySpace, valueUp)
	buf = append(buf, 1, 2, 3) // partial trailing event

	got := decodeKeys(buf)
	want := []keyEvent{{keyLCtrl, valueDown}, {keySpace, valueUp}}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestKeyboards(t *testing.T) {
	dev, sys := t.TempDir(), t.TempDir()
	oldDev, oldSys := inputDir, sysDir
	inputDir, sysDir = dev, sys
	t.Cleanup(func() { inputDir, sysDir = oldDev, oldSys })

	caps := map[string]string{
		"event0": "120013 0 0 0 0 0 fffffffffffffffe",
		"event1": "4",
	}
	for name, bits := range caps {
		os.WriteFile(filepath.Join(dev, name), nil, 0644)
		dir := filepath.Join(sys, name, "device", "capabilities")
		os.MkdirAll(dir, 0755)
		os.WriteFile(filepath.Join(dir, "key"), []byte(bits+"\n"), 0644)
	}
	os.WriteFile(filepath.Join(dev, "mice"), nil, 0644)

	got, err := keyboards()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != filepath.Join(dev, "event0") {
		t.Errorf("keyboards = %v", got)
	}
}
