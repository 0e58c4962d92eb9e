package client

import "voiceagent/core"

// Event is an input to Transition: a user action or the completion of an
// effect.
type Event interface {
	isEvent()
}

// UserInitiated starts a new attempt. The caller picks the ID.
type UserInitiated struct{ AttemptID string }

type PermissionGranted struct{ AttemptID string }

type PermissionDenied struct {
	AttemptID string
	Err       error
}

// UserStopped ends recording with the captured audio.
type UserStopped struct {
	AttemptID string
	Audio     core.AudioPayload
}

type MicrophoneFailed struct {
	AttemptID string
	Err       error
}

type UserCancelled struct{}

// ExternalInterrupt is a cancellation not requested by the user, such as a
// lost window focus.
type ExternalInterrupt struct{ Reason string }

type ServerResponded struct {
	AttemptID string
	Response  *TurnResponse
}

// RequestFailed means no response was received at all.
type RequestFailed struct {
	AttemptID string
	Err       error
}

type PlaybackEnded struct {
	AttemptID string
	Err       error
}

// StageProgress reports a server pipeline stage. TurnID equals the
// AttemptID of the upload that started the turn.
type StageProgress struct {
	TurnID string
	Stage  string
}

// NewSession abandons the current conversation.
type NewSession struct{}

type SessionChanged struct{ SessionKey string }

type HealthChanged struct{ Status HealthStatus }

func (UserInitiated) isEvent()     {}
func (PermissionGranted) isEvent() {}
func (PermissionDenied) isEvent()  {}
func (UserStopped) isEvent()       {}
func (MicrophoneFailed) isEvent()  {}
func (UserCancelled) isEvent()     {}
func (ExternalInterrupt) isEvent() {}
func (ServerResponded) isEvent()   {}
func (RequestFailed) isEvent()     {}
func (PlaybackEnded) isEvent()     {}
func (StageProgress) isEvent()     {}
func (NewSession) isEvent()        {}
func (SessionChanged) isEvent()    {}
func (HealthChanged) isEvent()     {}

// Effect is work Transition asks the Controller to perform.
type Effect interface {
	isEffect()
}

type RequestPermission struct{ AttemptID string }

type StartRecording struct{ AttemptID string }

// DiscardRecording stops the microphone and drops whatever it captured.
type DiscardRecording struct{}

type ReleaseMicrophone struct{}

type SubmitTurn struct {
	AttemptID  string
	SessionKey string
	Audio      core.AudioPayload
}

type AbortRequest struct{ AttemptID string }

type PlayAudio struct {
	AttemptID string
	URL       string
}

type StopPlayback struct{ AttemptID string }

type ResetSession struct{ SessionKey string }

func (RequestPermission) isEffect() {}
func (StartRecording) isEffect()    {}
func (DiscardRecording) isEffect()  {}
func (ReleaseMicrophone) isEffect() {}
func (SubmitTurn) isEffect()        {}
func (AbortRequest) isEffect()      {}
func (PlayAudio) isEffect()         {}
func (StopPlayback) isEffect()      {}
func (ResetSession) isEffect()      {}
