// internal/logging/logger_test.go
package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewLogger_WithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("text", "info", &buf)
	logger.Info("test message")

	if buf.Len() == 0 {
		t.Error("expected logger to write to provided writer")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level    string
		debugOut bool
		infoOut  bool
	}{
		{"debug", true, true},
		{"DEBUG", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger("text", tt.level, &buf)

			logger.Debug("d")
			if got := buf.Len() > 0; got != tt.debugOut {
				t.Errorf("debug output = %v, want %v", got, tt.debugOut)
			}
			buf.Reset()
			logger.Info("i")
			if got := buf.Len() > 0; got != tt.infoOut {
				t.Errorf("info output = %v, want %v", got, tt.infoOut)
			}
		})
	}
}

func TestWithSession_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSession(NewLogger("json", "info", &buf), "tab-7")
	logger.Info("url sanitized")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["session"] != "tab-7" {
		t.Errorf("session attribute = %v, want tab-7", entry["session"])
	}
	if entry["level"] != slog.LevelInfo.String() {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	WithComponent(NewLogger("text", "info", &buf), "watcher").Info("started")
	if !strings.Contains(buf.String(), "component=watcher") {
		t.Errorf("missing component attribute: %s", buf.String())
	}
}

func TestOpen_File(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "noped.log")

	logger, closer, err := Open("json", "info", logPath, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	logger.Info("hello")
	closer.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), `"msg":"hello"`) {
		t.Errorf("log file content = %s", content)
	}
}

func TestOpen_Stderr(t *testing.T) {
	logger, closer, err := Open("text", "info", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRotatingWriter_Writes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(logPath, 1024*1024)
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	msg := "Hello, log rotation!\n"
	n, err := w.Write([]byte(msg))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(msg) {
		t.Errorf("Write() = %d, want %d", n, len(msg))
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != msg {
		t.Errorf("log content = %q, want %q", string(content), msg)
	}
}

func TestRotatingWriter_RotatesAndCompresses(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(logPath, 100)
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	line := strings.Repeat("x", 50) + "\n"
	for i := 0; i < 5; i++ {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	f, err := os.Open(logPath + ".1.gz")
	if err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("rotated file is not valid gzip: %v", err)
	}
	defer gz.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		t.Fatalf("reading gzip content: %v", err)
	}
	if !strings.HasPrefix(buf.String(), line) {
		t.Errorf("rotated content = %q", buf.String())
	}
}

func TestRotatingWriter_MaxBackups(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(logPath, 30)
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	line := strings.Repeat("z", 40) + "\n"
	for i := 0; i < 30; i++ {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	rotated, _ := filepath.Glob(filepath.Join(dir, "test.log.*"))
	if len(rotated) != maxBackups {
		t.Errorf("expected %d rotated files, got %d: %v", maxBackups, len(rotated), rotated)
	}
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	os.WriteFile(logPath, []byte("earlier\n"), 0644)

	w, err := NewRotatingWriter(logPath, 1024)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("later\n"))
	w.Close()

	content, _ := os.ReadFile(logPath)
	if string(content) != "earlier\nlater\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRotatingWriter_ThreadSafe(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(logPath, 1024)
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Write([]byte(strings.Repeat("x", 10) + "\n"))
			}
		}()
	}
	wg.Wait()
}
