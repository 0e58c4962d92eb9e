package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies every failure a turn can end in.
type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindRecordingTooShort   ErrorKind = "recording_too_short"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindRateLimited         ErrorKind = "rate_limited"
	KindUnsupportedAudio    ErrorKind = "unsupported_audio"
	KindUserCancelled       ErrorKind = "user_cancelled"
	KindNetworkError        ErrorKind = "network_error"
	KindTimeout             ErrorKind = "timeout"
	KindEmptyInput          ErrorKind = "empty_input"
	KindTextTooLong         ErrorKind = "text_too_long"
	KindInternal            ErrorKind = "internal"
)

// Stage names one step of the turn pipeline.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
	StageSession    Stage = "session"
)

// ErrNotConfigured marks a provider that was never initialized, usually
// because its API key is missing.
var ErrNotConfigured = errors.New("service not configured")

// StageError is the error type returned by every adapter.
type StageError struct {
	Stage    Stage
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	if e.Provider != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Provider)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err. A nil err is allowed for purely local failures.
func NewStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// WithProvider records which backing service produced the error.
func (e *StageError) WithProvider(provider string) *StageError {
	e.Provider = provider
	return e
}

// KindOf classifies any error into the taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindUserCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindInternal
}

// StageOf returns the stage recorded on err, or "" when unknown.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ClassifyProviderError turns a raw provider error into a StageError,
// preferring context state over the error value so that a cancelled request
// is never reported as an upstream outage.
func ClassifyProviderError(ctx context.Context, stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return NewStageError(stage, KindUserCancelled, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewStageError(stage, KindTimeout, err)
	}
	return NewStageError(stage, KindUpstreamUnavailable, err)
}

// KindFromHTTPStatus maps a provider HTTP status onto the taxonomy.
func KindFromHTTPStatus(stage Stage, status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case stage == StageTranscribe && (status == http.StatusBadRequest ||
		status == http.StatusUnsupportedMediaType ||
		status == http.StatusUnprocessableEntity):
		return KindUnsupportedAudio
	}
	return KindUpstreamUnavailable
}
