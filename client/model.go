// Package client drives push-to-talk turns from the user's side: record,
// submit, play back, and recover from cancellation or failure.
package client

import "voiceagent/core"

type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateRecording            State = "recording"
	StateProcessing           State = "processing"
	StatePlaying              State = "playing"
)

// Attempt is one push-to-talk cycle. Completions tagged with another
// attempt's ID are stale and ignored.
type Attempt struct {
	ID string
	// Stage is the server pipeline stage last reported for this attempt.
	Stage string
}

type ChatEntry struct {
	Role     core.MessageRole
	Text     string
	AudioURL string
	// Partial marks an assistant reply delivered without its own audio.
	Partial bool
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is the message shown to the user after an attempt ends abnormally.
type Notice struct {
	Level   NoticeLevel
	Kind    core.ErrorKind
	Message string
}

type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Model is everything the client shows. It is owned by the Controller loop
// and only changed through Transition.
type Model struct {
	State      State
	SessionKey string
	Attempt    *Attempt
	Chat       []ChatEntry
	Notice     *Notice
	Health     HealthStatus
}

// NewModel returns an idle model for sessionKey.
func NewModel(sessionKey string) Model {
	return Model{State: StateIdle, SessionKey: sessionKey, Health: HealthUnknown}
}

// Clone copies the model so a snapshot can leave the loop goroutine.
func (m Model) Clone() Model {
	c := m
	c.Chat = append([]ChatEntry(nil), m.Chat...)
	if m.Attempt != nil {
		a := *m.Attempt
		c.Attempt = &a
	}
	if m.Notice != nil {
		n := *m.Notice
		c.Notice = &n
	}
	return c
}

func (m Model) attemptID() string {
	if m.Attempt == nil {
		return ""
	}
	return m.Attempt.ID
}

const (
	msgCancelled        = "Cancelled."
	msgPermissionDenied = "Microphone access is needed to talk. Please allow it and try again."
	msgNetworkError     = "Couldn't reach the assistant. Check your connection and try again."
	msgMicrophoneFailed = "The microphone stopped working. Please try again."
	msgTextOnly         = "Audio isn't available for this reply, so it's shown as text."
	msgPlaybackFailed   = "Couldn't play the reply audio."
	msgTruncated        = "The reply was too long to read out in full."
	msgServerError      = "Something went wrong. Please try again."
)
