package orchestrator

import "voiceagent/core"

// Result is the outcome of one run. Err is set for error outcomes and, on a
// partial outcome, carries the synthesis failure.
type Result struct {
	TurnID     string
	SessionKey string
	Status     Status

	UserText      string
	AssistantText string
	Audio         *core.AudioRef
	Truncated     bool

	Err             error
	FallbackMessage string

	// States lists every state the run passed through, in order.
	States []State
}

// Kind classifies the failure of an error outcome; "" otherwise.
func (r *Result) Kind() core.ErrorKind {
	if r.Status != StatusError {
		return ""
	}
	return core.KindOf(r.Err)
}

// Recorded reports whether the run appended a turn to the session.
func (r *Result) Recorded() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}
