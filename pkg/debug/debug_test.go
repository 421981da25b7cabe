package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	prevEnabled := Enabled()
	t.Cleanup(func() {
		SetLogger(prev)
		SetEnabled(prevEnabled)
	})
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	return &buf
}

func TestLog_Disabled(t *testing.T) {
	buf := captureLogger(t)
	SetEnabled(false)

	Log("hidden %d", 1)
	LogTiming("op", time.Millisecond)
	LogIf(true, "hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLog_Enabled(t *testing.T) {
	buf := captureLogger(t)
	SetEnabled(true)

	Log("processing %d items", 3)
	LogIf(false, "skipped")
	LogTiming("layout", 2*time.Millisecond)
	LogEnterExit("render")()

	out := buf.String()
	for _, want := range []string{"processing 3 items", `"op":"layout"`, "-> render"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Error("LogIf(false) should not write")
	}
}

func TestSetLogger_DebugLevelEnables(t *testing.T) {
	captureLogger(t)
	SetEnabled(false)
	SetLogger(zerolog.New(&bytes.Buffer{}).Level(zerolog.DebugLevel))
	if !Enabled() {
		t.Error("a debug-level logger should enable debug logging")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dv.log")
	l, closer, err := New("info", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info().Str("component", "test").Msg("hello")
	closer()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("unexpected log contents %q", data)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, _, err := New("loud", ""); err == nil {
		t.Error("expected error for unknown level")
	}
}
