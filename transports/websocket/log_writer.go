package websocket

import (
	"time"

	"voiceagent/core"
	"voiceagent/protocol"
)

// LogWriter implements core.LogWriter by forwarding a session's log lines
// to its event stream subscribers.
type LogWriter struct {
	hub        *Hub
	sessionKey string
}

// NewLogWriter creates a LogWriter that routes logs to the hub.
func NewLogWriter(hub *Hub, sessionKey string) *LogWriter {
	return &LogWriter{hub: hub, sessionKey: sessionKey}
}

// SessionLogWriter adapts the hub to the orchestrator's per-session log sink.
func (h *Hub) SessionLogWriter(sessionKey string) (core.LogWriter, error) {
	return NewLogWriter(h, sessionKey), nil
}

func (w *LogWriter) Write(level, msg string, attrs map[string]interface{}) {
	if w.hub.Subscribers(w.sessionKey) == 0 {
		return
	}
	entry := protocol.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     core.PrintableAttrs(attrs),
	}
	w.hub.broadcast(w.sessionKey, protocol.MsgLog, protocol.LogPayload{SessionKey: w.sessionKey, Entry: entry})
}

// Close signals the end of the run's log stream.
func (w *LogWriter) Close() {
	if w.hub.Subscribers(w.sessionKey) == 0 {
		return
	}
	w.hub.broadcast(w.sessionKey, protocol.MsgLogEnd, protocol.LogEndPayload{SessionKey: w.sessionKey})
}
