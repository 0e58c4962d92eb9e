package factories

import (
	"voiceagent/core"
	ttshandler "voiceagent/handlers/tts"
	elevenlabs "voiceagent/services/elevenlabs/tts"
	murf "voiceagent/services/murf/tts"
	openaitts "voiceagent/services/openai/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	OpenAIConfig     *openaitts.Config               `json:"openai,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
	MurfConfig       *murf.Config                    `json:"murf,omitempty"`
}

// BuildTTSService constructs a TTSService from the given factory config.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.TTSService, error) {
	if err := exactlyOne("tts", config.OpenAIConfig != nil, config.ElevenLabsConfig != nil, config.MurfConfig != nil); err != nil {
		return nil, err
	}
	switch {
	case config.OpenAIConfig != nil:
		return openaitts.NewOpenAITTSService(*config.OpenAIConfig, logger), nil
	case config.ElevenLabsConfig != nil:
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	default:
		return murf.NewMurfTTSService(*config.MurfConfig, logger), nil
	}
}
