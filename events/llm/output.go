package llm

type GenerationStartedEvent struct {
	HistoryTurns int `json:"history_turns"`
}

func (e *GenerationStartedEvent) GetId() string {
	return "llm.started"
}

type GenerationCompletedEvent struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

func (e *GenerationCompletedEvent) GetId() string {
	return "llm.completed"
}
