package tts

type SynthesisStartedEvent struct {
	Characters int `json:"characters"`
}

func (e *SynthesisStartedEvent) GetId() string {
	return "tts.started"
}

type SynthesisCompletedEvent struct {
	AudioURL  string `json:"audio_url"`
	Provider  string `json:"provider"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (e *SynthesisCompletedEvent) GetId() string {
	return "tts.completed"
}
