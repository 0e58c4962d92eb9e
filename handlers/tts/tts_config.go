package tts

type TTSConfig struct {
	MaxTextLength int    `json:"max_text_length"` // Upper bound on characters sent to any provider; the provider's own limit applies when lower.
	DefaultVoice  string `json:"default_voice"`
	TimeoutMs     int    `json:"timeout_ms"`
	AudioBasePath string `json:"audio_base_path"` // Public path prefix for locally stored clips.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		MaxTextLength: 3000,
		TimeoutMs:     30000,
		AudioBasePath: "/audio",
	}
}
