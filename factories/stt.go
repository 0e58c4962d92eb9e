package factories

import (
	"voiceagent/core"
	stthandler "voiceagent/handlers/stt"
	deepgramstt "voiceagent/services/deepgram/stt"
	openaistt "voiceagent/services/openai/stt"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	OpenAIConfig   *openaistt.Config           `json:"openai,omitempty"`
	DeepgramConfig *deepgramstt.DeepgramConfig `json:"deepgram,omitempty"`
}

// BuildSTTService constructs an STTService from the given factory config.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (stthandler.STTService, error) {
	if err := exactlyOne("stt", config.OpenAIConfig != nil, config.DeepgramConfig != nil); err != nil {
		return nil, err
	}
	if config.OpenAIConfig != nil {
		return openaistt.NewWhisperSTTService(*config.OpenAIConfig, logger), nil
	}
	return deepgramstt.NewDeepgramSTTService(config.DeepgramConfig, logger), nil
}
