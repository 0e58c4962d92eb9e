package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// LogHandler receives every emitted log line with the merged attributes.
type LogHandler func(level string, msg string, attrs map[string]interface{})

type Logger struct {
	handlerFunc LogHandler
	attrs       map[string]interface{}
	minLevel    int
}

var levelRank = map[string]int{
	"TRACE": 0,
	"DEBUG": 1,
	"INFO":  2,
	"WARN":  3,
	"ERROR": 4,
	"FATAL": 5,
	"PANIC": 6,
}

func NewLogger(handler LogHandler) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a logger with human readable console output.
func NewDevelopmentLogger() *Logger {
	return NewLogger(func(level string, msg string, attrs map[string]interface{}) {
		timestamp := time.Now().Format(time.RFC3339)
		attrStr := ""
		if len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
			}
			attrStr = " | " + strings.Join(parts, " ")
		}
		logLine := fmt.Sprintf("%s [%s] %s%s\n", timestamp, level, msg, attrStr)
		emit(level, msg, logLine, os.Stdout)
	})
}

// NewJSONLogger writes one JSON object per line to w. Used in containers
// where logs are shipped to an aggregator.
func NewJSONLogger(w io.Writer) *Logger {
	var mu sync.Mutex
	return NewLogger(func(level string, msg string, attrs map[string]interface{}) {
		entry := LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Level:     level,
			Message:   msg,
			Attrs:     PrintableAttrs(attrs),
		}
		data, err := sonic.Marshal(entry)
		if err != nil {
			data = []byte(fmt.Sprintf(`{"level":%q,"msg":%q}`, level, msg))
		}
		mu.Lock()
		emit(level, msg, string(data)+"\n", w)
		mu.Unlock()
	})
}

// NewLoggerFromEnv picks the handler from LOG_FORMAT ("json" or console) and
// the threshold from LOG_LEVEL.
func NewLoggerFromEnv() *Logger {
	var l *Logger
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		l = NewJSONLogger(os.Stdout)
	} else {
		l = NewDevelopmentLogger()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		l = l.WithLevel(lvl)
	}
	return l
}

func emit(level, msg, line string, w io.Writer) {
	switch level {
	case "FATAL":
		fmt.Fprint(os.Stderr, line)
		os.Exit(1)
	case "PANIC":
		fmt.Fprint(os.Stderr, line)
		panic(msg)
	default:
		fmt.Fprint(w, line)
	}
}

// PrintableAttrs turns error values into strings so they survive JSON encoding.
func PrintableAttrs(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok && err != nil {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc == nil || levelRank[level] < l.minLevel {
		return
	}
	if len(args) > 0 {
		// slog-style key/value pairs are merged into the attributes.
		if isKeyValuePairs(args) {
			attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
			l.handlerFunc(level, msg, attrs)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log("DEBUG", msg, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", format, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log("INFO", msg, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log("WARN", msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log("FATAL", format, args...)
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
		minLevel:    l.minLevel,
	}
}

// WithLevel returns a copy that drops lines below level.
func (l *Logger) WithLevel(level string) *Logger {
	clone := l.With(nil)
	clone.minLevel = levelRank[strings.ToUpper(level)]
	return clone
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return NewLogger(func(string, string, map[string]interface{}) {})
}
