package stt

type TranscriptionStartedEvent struct {
	MimeType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

func (e *TranscriptionStartedEvent) GetId() string {
	return "stt.started"
}

type TranscriptionCompletedEvent struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

func (e *TranscriptionCompletedEvent) GetId() string {
	return "stt.completed"
}
