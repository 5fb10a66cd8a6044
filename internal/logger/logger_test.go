package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		_ = Close()
	})
}

func TestSetVerbose(t *testing.T) {
	resetLogger(t)

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	if got := buf.String(); got != "[DEBUG] test message arg\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")

	if buf.Len() > 0 {
		t.Error("expected no output when verbose is disabled")
	}
}

func TestSection(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Test Section")

	if got := buf.String(); got != "\n=== Test Section ===\n" {
		t.Errorf("unexpected section output: %q", got)
	}
}

func TestLevels_WhenVerbose(t *testing.T) {
	tests := []struct {
		name string
		log  func(string, ...any)
		want string
	}{
		{"info", Info, "[INFO] message 42\n"},
		{"warn", Warn, "[WARN] message 42\n"},
		{"error", Error, "[ERROR] message 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger(t)

			var buf bytes.Buffer
			SetOutput(&buf)
			SetVerbose(true)

			tt.log("message %d", 42)

			if got := buf.String(); got != tt.want {
				t.Errorf("unexpected output: %q", got)
			}
		})
	}
}

func TestConfigure_WritesLogFile(t *testing.T) {
	resetLogger(t)

	path := filepath.Join(t.TempDir(), "logs", "daemon.log")
	if err := Configure(Options{Level: "info", FilePath: path, MaxSizeMB: 1, MaxBackups: 1}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	Debug("hidden debug line")
	Info("upload of %s finished", "a.pdf")
	Section("Scan")
	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "upload of a.pdf finished") {
		t.Errorf("expected info line in log file, got %q", content)
	}
	if !strings.Contains(content, "=== Scan ===") {
		t.Errorf("expected section line in log file, got %q", content)
	}
	if strings.Contains(content, "hidden debug line") {
		t.Errorf("debug line should be filtered at info level")
	}
}

func TestConfigure_UnknownLevelFallsBackToInfo(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	if err := Configure(Options{Level: "chatty"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if !strings.Contains(buf.String(), `unknown log level "chatty"`) {
		t.Errorf("expected warning about level, got %q", buf.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(true)
			Debug("concurrent debug")
			Info("concurrent info")
			_ = IsVerbose()
		}()
	}
	wg.Wait()
}
