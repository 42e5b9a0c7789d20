package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog       zerolog.Logger
	diagFile      *os.File
	utteranceFile *os.File
	logMu         sync.Mutex
	logReady      bool
	pid           int
	dir           string
)

// DispatchMetrics describes one completed backend call.
type DispatchMetrics struct {
	ID         string
	Status     string
	Results    int
	StatusCode int
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: VOXCALL_LOG_PATH environment variable
	if envPath := os.Getenv("VOXCALL_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics and utterance logs under Dir().
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	utterancePath := filepath.Join(dir, "utterance_log.txt")
	utteranceFile, err = os.OpenFile(utterancePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		diagFile = nil
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

// InitConsole logs to w instead of files. Used by the server binary.
func InitConsole(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	pid = os.Getpid()
	diagLog = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}).
		With().Timestamp().Logger()
	logReady = true
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if utteranceFile != nil {
		utteranceFile.Close()
		utteranceFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Status records a user-facing status line.
func Status(msg string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("status", msg).Msg("status")
}

func Dispatch(m DispatchMetrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("id", m.ID).
		Str("result", m.Status).
		Int("calls", m.Results).
		Str("conn", connStatus)
	if m.StatusCode != 0 {
		ev = ev.Int("http_status", m.StatusCode)
	}
	ev.Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("dispatch")
}

// Utterance appends one finalized utterance to utterance_log.txt.
func Utterance(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if utteranceFile == nil {
		diagLog.Info().Str("text", text).Msg("utterance")
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	utteranceFile.WriteString(line)
}

func SessionStart(source, backend, lang string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("source", source).
		Str("backend", backend).
		Str("lang", lang).
		Msg("session_start")
}

func SessionEnd(utterances, calls int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("utterances", utterances).
		Int("calls", calls).
		Msg("session_end")
}
