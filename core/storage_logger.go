package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// sessionLoggerKey is the context key for storing a per-session logger.
type sessionLoggerKey struct{}

// ContextWithSessionLogger returns a new context carrying the session logger.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext extracts the session logger from the context, or nil.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// LoggerFromContext is SessionLoggerFromContext falling back to fallback.
func LoggerFromContext(ctx context.Context, fallback *Logger) *Logger {
	if l := SessionLoggerFromContext(ctx); l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return GetLogger()
}

// SessionMetadata is the first JSON line in each session log file.
type SessionMetadata struct {
	SessionKey string `json:"session_key"`
	StartedAt  string `json:"started_at"`
}

// LogEntry is a single JSON log line written after the metadata line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// LogWriter abstracts the destination for session log entries.
type LogWriter interface {
	Write(level, msg string, attrs map[string]interface{})
	Close()
}

// SessionLogWriter appends structured log lines to <logDir>/<sessionKey>.jsonl.
// A conversation spans many requests, so the file is reopened in append mode
// and the metadata line is only written when the file is new.
type SessionLogWriter struct {
	mu   sync.Mutex
	file *os.File
}

// NewSessionLogWriter opens (or creates) the log file for sessionKey.
func NewSessionLogWriter(logDir, sessionKey string) (*SessionLogWriter, error) {
	if sessionKey == "" || filepath.Base(sessionKey) != sessionKey {
		return nil, fmt.Errorf("storage logger: invalid session key %q", sessionKey)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage logger: mkdir %q: %w", logDir, err)
	}

	filePath := filepath.Join(logDir, sessionKey+".jsonl")
	_, statErr := os.Stat(filePath)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage logger: open %q: %w", filePath, err)
	}

	if isNew {
		meta := SessionMetadata{
			SessionKey: sessionKey,
			StartedAt:  time.Now().UTC().Format(time.RFC3339),
		}
		data, _ := sonic.Marshal(meta)
		f.Write(append(data, '\n'))
	}

	return &SessionLogWriter{file: f}, nil
}

// Write appends a structured log line to the session file.
func (w *SessionLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     PrintableAttrs(attrs),
	}
	data, err := sonic.Marshal(entry)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		w.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (w *SessionLogWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
}

// NewSessionLogger creates a Logger that tees output to both the base logger
// and the provided LogWriter. All child loggers created via With() inherit
// this behaviour automatically.
func NewSessionLogger(baseLogger *Logger, writer LogWriter) *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		if baseLogger.handlerFunc != nil && levelRank[level] >= baseLogger.minLevel {
			baseLogger.handlerFunc(level, msg, attrs)
		}
		writer.Write(level, msg, attrs)
	}

	return &Logger{
		handlerFunc: handler,
		attrs:       baseLogger.attrs,
	}
}

// MultiLogWriter writes every entry to each writer in order.
type MultiLogWriter []LogWriter

func (m MultiLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	for _, w := range m {
		w.Write(level, msg, attrs)
	}
}

func (m MultiLogWriter) Close() {
	for _, w := range m {
		w.Close()
	}
}
