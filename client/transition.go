package client

import "voiceagent/core"

// Transition applies ev to m and returns the next model plus the effects
// the Controller must run. It has no side effects of its own.
func Transition(m Model, ev Event) (Model, []Effect) {
	m = m.Clone()

	switch e := ev.(type) {
	case UserCancelled, ExternalInterrupt:
		return cancel(m)
	case StageProgress:
		if m.State == StateProcessing && m.Attempt != nil && e.TurnID == m.Attempt.ID {
			m.Attempt.Stage = e.Stage
		}
		return m, nil
	case NewSession:
		var effects []Effect
		m, effects = cancel(m)
		m.Chat = nil
		m.Notice = nil
		return m, append(effects, ResetSession{SessionKey: m.SessionKey})
	case SessionChanged:
		m.SessionKey = e.SessionKey
		return m, nil
	case HealthChanged:
		m.Health = e.Status
		return m, nil
	}

	switch m.State {
	case StateIdle:
		if e, ok := ev.(UserInitiated); ok {
			m.State = StateRequestingPermission
			m.Attempt = &Attempt{ID: e.AttemptID}
			m.Notice = nil
			return m, []Effect{RequestPermission{AttemptID: e.AttemptID}}
		}

	case StateRequestingPermission:
		switch e := ev.(type) {
		case PermissionGranted:
			if e.AttemptID != m.attemptID() {
				break
			}
			m.State = StateRecording
			return m, []Effect{StartRecording{AttemptID: e.AttemptID}}
		case PermissionDenied:
			if e.AttemptID != m.attemptID() {
				break
			}
			m = toIdle(m, &Notice{Level: NoticeError, Kind: core.KindPermissionDenied, Message: msgPermissionDenied})
			return m, []Effect{ReleaseMicrophone{}}
		}

	case StateRecording:
		switch e := ev.(type) {
		case UserStopped:
			if e.AttemptID != m.attemptID() {
				break
			}
			m.State = StateProcessing
			return m, []Effect{
				ReleaseMicrophone{},
				SubmitTurn{AttemptID: e.AttemptID, SessionKey: m.SessionKey, Audio: e.Audio},
			}
		case MicrophoneFailed:
			if e.AttemptID != m.attemptID() {
				break
			}
			m = toIdle(m, &Notice{Level: NoticeError, Kind: core.KindInternal, Message: msgMicrophoneFailed})
			return m, []Effect{ReleaseMicrophone{}}
		}

	case StateProcessing:
		switch e := ev.(type) {
		case ServerResponded:
			if e.AttemptID != m.attemptID() || e.Response == nil {
				break
			}
			return responded(m, e.Response)
		case RequestFailed:
			if e.AttemptID != m.attemptID() {
				break
			}
			m = toIdle(m, &Notice{Level: NoticeError, Kind: core.KindNetworkError, Message: msgNetworkError})
			return m, nil
		}

	case StatePlaying:
		if e, ok := ev.(PlaybackEnded); ok && e.AttemptID == m.attemptID() {
			var notice *Notice
			if e.Err != nil {
				notice = &Notice{Level: NoticeWarning, Kind: core.KindInternal, Message: msgPlaybackFailed}
			}
			return toIdle(m, notice), nil
		}
	}

	// Anything else is stale or not meaningful in the current state.
	return m, nil
}

// cancel ends the current attempt silently. Cancelling while idle does
// nothing.
func cancel(m Model) (Model, []Effect) {
	var effects []Effect
	switch m.State {
	case StateIdle:
		return m, nil
	case StateRequestingPermission:
		effects = []Effect{ReleaseMicrophone{}}
	case StateRecording:
		effects = []Effect{DiscardRecording{}}
	case StateProcessing:
		effects = []Effect{AbortRequest{AttemptID: m.attemptID()}}
	case StatePlaying:
		effects = []Effect{StopPlayback{AttemptID: m.attemptID()}}
	}
	m = toIdle(m, &Notice{Level: NoticeInfo, Kind: core.KindUserCancelled, Message: msgCancelled})
	return m, effects
}

func responded(m Model, resp *TurnResponse) (Model, []Effect) {
	switch resp.Status {
	case TurnSuccess, TurnPartial:
		partial := resp.Status == TurnPartial
		m.Chat = append(m.Chat,
			ChatEntry{Role: core.MessageRoleUser, Text: resp.UserMessage},
			ChatEntry{Role: core.MessageRoleAssistant, Text: resp.AIResponse, AudioURL: resp.AudioURL, Partial: partial},
		)
		var notice *Notice
		switch {
		case partial:
			notice = &Notice{Level: NoticeWarning, Kind: core.KindUpstreamUnavailable, Message: msgTextOnly}
		case resp.Truncated:
			notice = &Notice{Level: NoticeInfo, Kind: core.KindTextTooLong, Message: msgTruncated}
		}
		if resp.AudioURL == "" {
			return toIdle(m, notice), nil
		}
		m.State = StatePlaying
		m.Notice = notice
		return m, []Effect{PlayAudio{AttemptID: m.attemptID(), URL: resp.AudioURL}}
	}

	msg := resp.FallbackMessage
	if msg == "" {
		msg = msgServerError
	}
	kind := resp.Kind
	if kind == "" {
		kind = core.KindInternal
	}
	return toIdle(m, &Notice{Level: NoticeError, Kind: kind, Message: msg}), nil
}

func toIdle(m Model, notice *Notice) Model {
	m.State = StateIdle
	m.Attempt = nil
	m.Notice = notice
	return m
}
