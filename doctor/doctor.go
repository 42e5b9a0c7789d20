// Package doctor runs the -doctor self checks: global hotkey, microphone,
// backend and clipboard.
package doctor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"voxcall/audio"
	"voxcall/clipboard"
	"voxcall/dispatch"
	"voxcall/hotkey"
)

const (
	sampleText   = "show me red shoes under 50 dollars"
	clipSentinel = "voxcall-doctor-test"
)

type Config struct {
	// Hotkey is skipped when nil.
	Hotkey     hotkey.Hotkey
	HotkeyWait time.Duration

	Audio  audio.Context
	Device *audio.DeviceInfo
	Record time.Duration

	Backend        dispatch.Backend
	Endpoint       string
	BackendTimeout time.Duration

	Clip clipboard.Writer
	Out  io.Writer
}

type check struct {
	name string
	run  func(ctx context.Context, cfg Config) error
}

var checks = []check{
	{"Hotkey detection", checkHotkey},
	{"Microphone", checkMicrophone},
	{"Backend", checkBackend},
	{"Clipboard", checkClipboard},
}

// Run executes every check and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, cfg Config) int {
	out := cfg.Out
	fmt.Fprintln(out, "voxcall doctor - system diagnostics")
	fmt.Fprintln(out, "===================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(checks), c.name)
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(out, "  SKIP: interrupted")
			failed++
			continue
		}
		if err := c.run(ctx, cfg); err != nil {
			fmt.Fprintf(out, "  FAIL: %v\n", err)
			failed++
		}
	}

	fmt.Fprintln(out)
	if failed == 0 {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintf(out, "%d check(s) failed. See details above.\n", failed)
	return 1
}

func checkHotkey(ctx context.Context, cfg Config) error {
	if cfg.Hotkey == nil {
		fmt.Fprintln(cfg.Out, "  SKIP: no hotkey backend")
		return nil
	}
	if err := cfg.Hotkey.Register(); err != nil {
		return fmt.Errorf("could not register hotkey: %w", err)
	}
	defer cfg.Hotkey.Unregister()

	fmt.Fprintf(cfg.Out, "Press %s...\n", hotkey.Combo)
	select {
	case <-cfg.Hotkey.Keydown():
	case <-time.After(cfg.HotkeyWait):
		return fmt.Errorf("timeout waiting for hotkey")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cfg.Hotkey.Keyup():
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}
	resetTerminal()
	fmt.Fprintln(cfg.Out, "  PASS: hotkey detected")
	return nil
}

func checkMicrophone(ctx context.Context, cfg Config) error {
	if cfg.Audio == nil {
		return fmt.Errorf("no audio context")
	}
	if err := audio.Probe(cfg.Audio, cfg.Device); err != nil {
		return err
	}

	fmt.Fprintf(cfg.Out, "  Recording %s, speak now", cfg.Record)
	pcm, err := record(ctx, cfg.Audio, cfg.Device, cfg.Record)
	fmt.Fprintln(cfg.Out, " done")
	if err != nil {
		return fmt.Errorf("recording error: %w", err)
	}
	if len(pcm) == 0 {
		return fmt.Errorf("no audio captured")
	}
	fmt.Fprintf(cfg.Out, "  PASS: recorded %.1f KB, peak level %.1f dBFS\n", float64(len(pcm))/1024, peakDBFS(pcm))
	return nil
}

func record(ctx context.Context, actx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]byte, error) {
	var (
		mu  sync.Mutex
		buf []byte
	)
	capture, err := actx.NewCapture(device, audio.DefaultCaptureConfig())
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		buf = append(buf, data...)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return nil, err
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	return buf, nil
}

// peakDBFS returns the loudest PCM16 sample relative to full scale. Pure
// silence reports -inf.
func peakDBFS(pcm []byte) float64 {
	var peak float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := math.Abs(float64(int16(binary.LittleEndian.Uint16(pcm[i:]))))
		if s > peak {
			peak = s
		}
	}
	return 20 * math.Log10(peak/32768)
}

func checkBackend(ctx context.Context, cfg Config) error {
	if cfg.Backend == nil {
		return fmt.Errorf("no backend configured")
	}
	fmt.Fprintf(cfg.Out, "  POST %s %q\n", cfg.Endpoint, sampleText)

	if cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.BackendTimeout)
		defer cancel()
	}
	calls, m, err := cfg.Backend.ProcessText(ctx, sampleText)
	if err != nil {
		return fmt.Errorf("%s", dispatch.ErrorMessage(err))
	}
	if m != nil {
		fmt.Fprintf(cfg.Out, "  ttfb %dms, total %dms\n", m.TTFB.Milliseconds(), m.Total.Milliseconds())
	}
	if len(calls) == 0 {
		fmt.Fprintln(cfg.Out, "  PASS: backend answered (no function call)")
		return nil
	}
	for _, c := range calls {
		fmt.Fprintf(cfg.Out, "  %s %s\n", c.Name, c.Arguments)
	}
	fmt.Fprintf(cfg.Out, "  PASS: backend returned %d function call(s)\n", len(calls))
	return nil
}

func checkClipboard(_ context.Context, cfg Config) error {
	if cfg.Clip == nil {
		return fmt.Errorf("no clipboard")
	}
	if clipboard.Unsupported() && cfg.Clip == clipboard.System {
		return fmt.Errorf("no clipboard utility found (install xclip, xsel or wl-clipboard)")
	}
	if err := clipboard.Copy(cfg.Clip, clipSentinel); err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}
	r, ok := cfg.Clip.(clipboard.Reader)
	if !ok {
		fmt.Fprintln(cfg.Out, "  PASS: copied (read back not supported)")
		return nil
	}
	got, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("could not read clipboard: %w", err)
	}
	if got != clipSentinel {
		return fmt.Errorf("clipboard read back %q, want %q", got, clipSentinel)
	}
	fmt.Fprintln(cfg.Out, "  PASS: clipboard copy verified")
	return nil
}
