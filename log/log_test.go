package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/voxlog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxlog" {
		t.Errorf("got %q, want /tmp/voxlog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wd, "logs"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOXCALL_LOG_PATH", "/tmp/voxcall-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxcall-env-log" {
		t.Errorf("got %q, want /tmp/voxcall-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOXCALL_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "voxcall") {
		t.Errorf("default dir %q should mention voxcall", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "utterance_log.txt"} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestUtteranceLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Utterance("open the door")

	data, err := os.ReadFile(filepath.Join(tmp, "utterance_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "open the door") {
		t.Errorf("utterance_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if strings.Count(line, "\t") != 2 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestDispatchFields(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Dispatch(DispatchMetrics{ID: "abc", Status: "failed", StatusCode: 500})
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"dispatch", "id=abc", "result=failed", "http_status=500"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics missing %q: %s", want, data)
		}
	}
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	InitConsole(&buf)
	t.Cleanup(Close)

	Warnf("backend %s", "down")
	if !strings.Contains(buf.String(), "backend down") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Close()
	Info("dropped")
	Utterance("dropped")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close()
}
