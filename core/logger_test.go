package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestJSONLoggerMergesAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf).With(map[string]any{"component": "test"})
	l.Info("turn finished", "status", "success", "error", errors.New("none"))

	var entry LogEntry
	if err := sonic.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry.Level != "INFO" || entry.Message != "turn finished" {
		t.Fatalf("entry=%+v", entry)
	}
	if entry.Attrs["component"] != "test" || entry.Attrs["status"] != "success" || entry.Attrs["error"] != "none" {
		t.Fatalf("attrs=%v", entry.Attrs)
	}
}

func TestWithLevelDropsLowerLevels(t *testing.T) {
	var lines []string
	l := NewLogger(func(level, msg string, _ map[string]interface{}) {
		lines = append(lines, level+":"+msg)
	}).WithLevel("warn")

	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")

	if strings.Join(lines, ",") != "WARN:c,ERROR:d" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestSessionLogWriterAppends(t *testing.T) {
	dir := t.TempDir()

	w, err := NewSessionLogWriter(dir, "abc")
	if err != nil {
		t.Fatalf("NewSessionLogWriter: %v", err)
	}
	NewSessionLogger(NewNopLogger(), w).Info("first")
	w.Close()

	w, err = NewSessionLogWriter(dir, "abc")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	NewSessionLogger(NewNopLogger(), w).Info("second")
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, "abc.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("want metadata + 2 entries, got %d lines: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], `"session_key":"abc"`) {
		t.Fatalf("metadata line=%q", lines[0])
	}
}

func TestSessionLogWriterRejectsPathKeys(t *testing.T) {
	if _, err := NewSessionLogWriter(t.TempDir(), "../escape"); err == nil {
		t.Fatalf("expected error for path-like key")
	}
}
