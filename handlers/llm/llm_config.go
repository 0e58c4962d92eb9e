package llm

type LLMHandlerConfig struct {
	SystemPrompt string `json:"system_prompt"`
	HistoryTurns int    `json:"history_turns"` // Number of prior user/assistant exchanges included in the prompt.
	TimeoutMs    int    `json:"timeout_ms"`
}

func DefaultConfig() LLMHandlerConfig {
	return LLMHandlerConfig{
		SystemPrompt: DEFAULT_SYSTEM_PROMPT,
		HistoryTurns: DEFAULT_HISTORY_TURNS,
		TimeoutMs:    30000,
	}
}
