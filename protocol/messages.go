package protocol

import (
	"encoding/json"
	"time"

	"voiceagent/core"
)

// TurnIDHeader lets a chat upload choose its turn id, which is then echoed
// in every stage event of that turn.
const TurnIDHeader = "X-Turn-ID"

// MessageType enumerates all event stream message types.
type MessageType string

const (
	// Server -> client
	MsgHello     MessageType = "hello"
	MsgHeartbeat MessageType = "heartbeat"
	MsgEvent     MessageType = "event"
	MsgLog       MessageType = "log"
	MsgLogEnd    MessageType = "log_end"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload is sent once right after a subscriber connects.
type HelloPayload struct {
	SessionKey string    `json:"session_key"`
	ServerTime time.Time `json:"server_time"`
}

// HeartbeatPayload is sent periodically to keep the connection alive.
type HeartbeatPayload struct {
	Timestamp   time.Time `json:"timestamp"`
	Subscribers int       `json:"subscribers"`
}

// EventPayload carries one pipeline event for a session.
type EventPayload struct {
	SessionKey string          `json:"session_key"`
	EventID    string          `json:"event_id"`
	Uid        string          `json:"uid"`
	Relayer    string          `json:"relayer,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
}

// LogPayload carries a single log entry from a session.
type LogPayload struct {
	SessionKey string   `json:"session_key"`
	Entry      LogEntry `json:"entry"`
}

// LogEntry is the session log line shared with the on-disk JSONL files.
type LogEntry = core.LogEntry

// LogEndPayload signals that a run's log stream has ended.
type LogEndPayload struct {
	SessionKey string `json:"session_key"`
}
