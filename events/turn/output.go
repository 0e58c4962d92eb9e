package turn

// TurnStageEvent is published on every pipeline state transition.
type TurnStageEvent struct {
	TurnID string `json:"turn_id"`
	State  string `json:"state"`
}

func (e *TurnStageEvent) GetId() string {
	return "turn.stage"
}

// TurnCompletedEvent closes a run that produced a success or partial outcome.
type TurnCompletedEvent struct {
	TurnID        string `json:"turn_id"`
	Status        string `json:"status"`
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
	AudioURL      string `json:"audio_url,omitempty"`
}

func (e *TurnCompletedEvent) GetId() string {
	return "turn.completed"
}

// TurnFailedEvent closes a run that produced no turn.
type TurnFailedEvent struct {
	TurnID string `json:"turn_id"`
	Stage  string `json:"stage,omitempty"`
	Kind   string `json:"kind"`
	Error  string `json:"error,omitempty"`
}

func (e *TurnFailedEvent) GetId() string {
	return "turn.failed"
}
