// Package fallback supplies what a user hears when a turn cannot be
// completed: a spoken-style message per failing stage and an optional
// pre-rendered apology clip.
package fallback

import (
	"errors"

	"voiceagent/core"
)

// Messages are the user-facing texts returned instead of an assistant reply.
type Messages struct {
	STTError          string `json:"stt_error"`
	LLMError          string `json:"llm_error"`
	TTSError          string `json:"tts_error"`
	APIUnavailable    string `json:"api_unavailable"`
	EmptyTranscript   string `json:"empty_transcription"`
	RecordingTooShort string `json:"recording_too_short"`
	UnsupportedAudio  string `json:"unsupported_audio"`
	Cancelled         string `json:"cancelled"`
}

func DefaultMessages() Messages {
	return Messages{
		STTError:          "I'm having trouble hearing you right now. Could you please try again?",
		LLMError:          "I'm having trouble processing your request at the moment. Please try again in a few moments.",
		TTSError:          "I understand your question but I'm having trouble speaking right now. Please check back soon.",
		APIUnavailable:    "Some of my services are temporarily unavailable. I apologize for the inconvenience.",
		EmptyTranscript:   "I didn't catch that. Could you say it again?",
		RecordingTooShort: "That recording was too short. Please hold the button a little longer and try again.",
		UnsupportedAudio:  "I couldn't read that audio format. Please try recording again.",
		Cancelled:         "Request cancelled.",
	}
}

// merge fills empty fields of m from def.
func (m Messages) merge(def Messages) Messages {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Messages{
		STTError:          pick(m.STTError, def.STTError),
		LLMError:          pick(m.LLMError, def.LLMError),
		TTSError:          pick(m.TTSError, def.TTSError),
		APIUnavailable:    pick(m.APIUnavailable, def.APIUnavailable),
		EmptyTranscript:   pick(m.EmptyTranscript, def.EmptyTranscript),
		RecordingTooShort: pick(m.RecordingTooShort, def.RecordingTooShort),
		UnsupportedAudio:  pick(m.UnsupportedAudio, def.UnsupportedAudio),
		Cancelled:         pick(m.Cancelled, def.Cancelled),
	}
}

// For picks the message matching err's kind, then its stage.
func (m Messages) For(err error) string {
	if errors.Is(err, core.ErrNotConfigured) {
		return m.APIUnavailable
	}
	switch core.KindOf(err) {
	case core.KindRecordingTooShort:
		return m.RecordingTooShort
	case core.KindEmptyInput:
		return m.EmptyTranscript
	case core.KindUnsupportedAudio:
		return m.UnsupportedAudio
	case core.KindUserCancelled:
		return m.Cancelled
	}
	switch core.StageOf(err) {
	case core.StageTranscribe, core.StageUpload:
		return m.STTError
	case core.StageGenerate:
		return m.LLMError
	case core.StageSynthesize:
		return m.TTSError
	}
	return m.APIUnavailable
}
