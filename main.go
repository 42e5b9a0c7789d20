package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"voxcall/audio"
	"voxcall/clipboard"
	"voxcall/dispatch"
	"voxcall/doctor"
	"voxcall/hotkey"
	"voxcall/log"
	"voxcall/shutdown"
	"voxcall/speech"
)

var version = "dev"

const (
	defaultBackend  = "http://localhost:8000"
	hotkeyLongPress = 350 * time.Millisecond
)

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func forwardGestures(ctx context.Context, a *app, g *hotkey.Gestures) {
	for {
		select {
		case act := <-g.Actions():
			log.Info("hotkey_" + act.String())
			if act == hotkey.HoldEnd {
				a.send(ctx, cmdHoldEnd)
			} else {
				a.send(ctx, cmdToggle)
			}
		case <-ctx.Done():
			return
		}
	}
}

func runDoctor(ctx context.Context, backend *dispatch.Client, deviceName string) int {
	mic, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		return 1
	}
	defer mic.Close()
	device, err := audio.FindDevice(mic, deviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return doctor.Run(ctx, doctor.Config{
		Hotkey:         hotkey.New(),
		HotkeyWait:     10 * time.Second,
		Audio:          mic,
		Device:         device,
		Record:         3 * time.Second,
		Backend:        backend,
		Endpoint:       backend.URL(),
		BackendTimeout: 30 * time.Second,
		Clip:           clipboard.System,
		Out:            os.Stdout,
	})
}

func run() {
	backendFlag := flag.String("backend", getenvDefault("VOXCALL_BACKEND_URL", defaultBackend), "Function-call backend base URL")
	langFlag := flag.String("lang", "en-US", "Recognition language")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	timeoutFlag := flag.Duration("timeout", 0, "Backend request timeout (0 = wait indefinitely)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voxcall %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	backend := dispatch.NewClient(*backendFlag, *timeoutFlag)

	if *testFlag {
		if err := runTestMode(ctx, os.Stdin, os.Stdout, backend, *langFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *doctorFlag {
		code := runDoctor(ctx, backend, *deviceFlag)
		stop()
		log.Close()
		os.Exit(code)
	}

	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: set DEEPGRAM_API_KEY environment variable")
		os.Exit(1)
	}

	mic, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer mic.Close()

	var device *audio.DeviceInfo
	if *deviceFlag != "" {
		device, err = audio.FindDevice(mic, *deviceFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if *setupFlag {
		device, err = audio.SelectDevice(mic)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			device = nil
		}
	}

	if clipboard.Unsupported() {
		log.Warn("no clipboard utility found; copy will fail")
	}

	var sink Sink = &lineSink{w: os.Stdout}
	var tui *tuiSink
	if *tuiFlag {
		tui = newTUISink()
		sink = tui
	}

	a := newApp(appConfig{
		Source:   speech.NewDeepgram(apiKey, mic, device),
		Speech:   speech.Config{Continuous: true, InterimResults: true, Language: *langFlag},
		Audio:    mic,
		Device:   device,
		Backend:  backend,
		Endpoint: backend.URL(),
		Clip:     clipboard.System,
		Sink:     sink,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		if !*tuiFlag {
			fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
			os.Exit(1)
		}
	} else {
		defer hk.Unregister()
		gestures := hotkey.NewGestures(hk, hotkeyLongPress)
		defer gestures.Close()
		go forwardGestures(ctx, a, gestures)
	}

	done := make(chan struct{})
	go func() {
		a.loop(ctx)
		close(done)
		cancel()
	}()

	if tui != nil {
		p := newTUIProgram(ctx, a)
		go tui.forward(ctx, p)
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			log.Errorf("TUI error: %v", err)
		}
		a.send(ctx, cmdQuit)
	} else {
		fmt.Printf("voxcall %s: press %s to toggle listening, Ctrl+C to quit\n", version, hotkey.Combo)
	}
	<-done
}
