package factories

import (
	"fmt"

	"voiceagent/audiostore"
	"voiceagent/core"
	"voiceagent/fallback"
	llmhandler "voiceagent/handlers/llm"
	stthandler "voiceagent/handlers/stt"
	ttshandler "voiceagent/handlers/tts"
	openaillm "voiceagent/services/openai/llm"
	openaistt "voiceagent/services/openai/stt"
	openaitts "voiceagent/services/openai/tts"
)

// PipelineTTSConfig bundles TTS handler config with primary and optional fallback service factory configs.
type PipelineTTSConfig struct {
	// HandlerConfig controls handler-level TTS behaviour (text limit, voice, timeout).
	HandlerConfig ttshandler.TTSConfig `json:"handler"`
	// ServiceConfig selects and configures the primary TTS provider.
	ServiceConfig TTSFactoryConfig `json:"service"`
	// FallbackServiceConfigs is an ordered list of providers tried if the primary fails.
	FallbackServiceConfigs []TTSFactoryConfig `json:"fallbacks,omitempty"`
}

// BuildHandler constructs a TTSHandler with primary and fallback services wired up.
func (c PipelineTTSConfig) BuildHandler(store audiostore.Store, logger *core.Logger) (*ttshandler.TTSHandler, error) {
	primary, err := BuildTTSService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("tts primary service: %w", err)
	}
	backups := make([]ttshandler.TTSService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildTTSService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("tts fallback[%d]: %w", i, err)
		}
		backups = append(backups, fb)
	}
	return ttshandler.NewTTSHandler(primary, backups, store, c.HandlerConfig, logger), nil
}

// PipelineSTTConfig bundles STT handler config with primary and optional fallback service factory configs.
type PipelineSTTConfig struct {
	HandlerConfig          stthandler.STTConfig `json:"handler"`
	ServiceConfig          STTFactoryConfig     `json:"service"`
	FallbackServiceConfigs []STTFactoryConfig   `json:"fallbacks,omitempty"`
}

// BuildHandler constructs an STTHandler with primary and fallback services wired up.
func (c PipelineSTTConfig) BuildHandler(logger *core.Logger) (*stthandler.STTHandler, error) {
	primary, err := BuildSTTService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("stt primary service: %w", err)
	}
	backups := make([]stthandler.STTService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildSTTService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("stt fallback[%d]: %w", i, err)
		}
		backups = append(backups, fb)
	}
	return stthandler.NewSTTHandler(primary, backups, c.HandlerConfig, logger), nil
}

// PipelineLLMConfig bundles LLM handler config with primary and optional fallback service factory configs.
type PipelineLLMConfig struct {
	HandlerConfig          llmhandler.LLMHandlerConfig `json:"handler"`
	ServiceConfig          LLMFactoryConfig            `json:"service"`
	FallbackServiceConfigs []LLMFactoryConfig          `json:"fallbacks,omitempty"`
}

// BuildHandler constructs an LLMHandler with primary and fallback services wired up.
func (c PipelineLLMConfig) BuildHandler(logger *core.Logger) (*llmhandler.LLMHandler, error) {
	primary, err := BuildLLMService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("llm primary service: %w", err)
	}
	backups := make([]llmhandler.LLMService, 0, len(c.FallbackServiceConfigs))
	for i, fbCfg := range c.FallbackServiceConfigs {
		fb, err := BuildLLMService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("llm fallback[%d]: %w", i, err)
		}
		backups = append(backups, fb)
	}
	return llmhandler.NewLLMHandler(primary, backups, c.HandlerConfig, logger), nil
}

// PipelineConfig groups the three stage configs plus the fallback messages
// and apology clip used when a stage fails.
type PipelineConfig struct {
	STT      PipelineSTTConfig `json:"stt"`
	LLM      PipelineLLMConfig `json:"llm"`
	TTS      PipelineTTSConfig `json:"tts"`
	Fallback fallback.Config   `json:"fallback"`
}

// DefaultPipelineConfig returns handler defaults for every stage. Provider
// blocks are left empty so that parsed JSON can pick any of them;
// applyDefaultProviders fills in OpenAI where none was chosen.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		STT:      PipelineSTTConfig{HandlerConfig: stthandler.DefaultConfig()},
		LLM:      PipelineLLMConfig{HandlerConfig: llmhandler.DefaultConfig()},
		TTS:      PipelineTTSConfig{HandlerConfig: ttshandler.DefaultConfig()},
		Fallback: fallback.DefaultConfig(),
	}
}

func (c *PipelineConfig) applyDefaultProviders() {
	if c.STT.ServiceConfig == (STTFactoryConfig{}) {
		cfg := openaistt.DefaultConfig()
		c.STT.ServiceConfig.OpenAIConfig = &cfg
	}
	if c.LLM.ServiceConfig == (LLMFactoryConfig{}) {
		cfg := openaillm.DefaultConfig()
		c.LLM.ServiceConfig.OpenAIConfig = &cfg
	}
	if c.TTS.ServiceConfig == (TTSFactoryConfig{}) {
		cfg := openaitts.DefaultConfig()
		c.TTS.ServiceConfig.OpenAIConfig = &cfg
	}
}

// APIKeys holds API credentials for all supported service providers.
// Pass to PipelineConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	OpenAI     string // Used for OpenAI STT, LLM and TTS providers.
	Gemini     string // Used for Gemini LLM provider.
	Groq       string // Used for Groq LLM provider.
	Together   string // Used for Together AI LLM provider.
	DeepSeek   string // Used for DeepSeek LLM provider.
	OpenRouter string // Used for OpenRouter LLM provider.
	Deepgram   string // Used for Deepgram STT provider.
	ElevenLabs string // Used for ElevenLabs TTS provider.
	Murf       string // Used for Murf TTS provider.
}

// InjectAPIKeys applies API credentials to all configured service providers
// (primary and fallbacks). Keys already present in the config win.
func (c *PipelineConfig) InjectAPIKeys(keys APIKeys) {
	injectSTTKeys(&c.STT.ServiceConfig, keys)
	for i := range c.STT.FallbackServiceConfigs {
		injectSTTKeys(&c.STT.FallbackServiceConfigs[i], keys)
	}
	injectLLMKeys(&c.LLM.ServiceConfig, keys)
	for i := range c.LLM.FallbackServiceConfigs {
		injectLLMKeys(&c.LLM.FallbackServiceConfigs[i], keys)
	}
	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}
}

func injectSTTKeys(cfg *STTFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil {
		setKey(&cfg.OpenAIConfig.APIKey, keys.OpenAI)
	}
	if cfg.DeepgramConfig != nil {
		setKey(&cfg.DeepgramConfig.APIKey, keys.Deepgram)
	}
}

func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil {
		setKey(&cfg.OpenAIConfig.APIKey, keys.OpenAI)
	}
	if cfg.GeminiConfig != nil {
		setKey(&cfg.GeminiConfig.APIKey, keys.Gemini)
	}
	if cfg.GroqConfig != nil {
		setKey(&cfg.GroqConfig.APIKey, keys.Groq)
	}
	if cfg.TogetherConfig != nil {
		setKey(&cfg.TogetherConfig.APIKey, keys.Together)
	}
	if cfg.DeepSeekConfig != nil {
		setKey(&cfg.DeepSeekConfig.APIKey, keys.DeepSeek)
	}
	if cfg.OpenRouterConfig != nil {
		setKey(&cfg.OpenRouterConfig.APIKey, keys.OpenRouter)
	}
}

func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil {
		setKey(&cfg.OpenAIConfig.APIKey, keys.OpenAI)
	}
	if cfg.ElevenLabsConfig != nil {
		setKey(&cfg.ElevenLabsConfig.APIKey, keys.ElevenLabs)
	}
	if cfg.MurfConfig != nil {
		setKey(&cfg.MurfConfig.APIKey, keys.Murf)
	}
}

func setKey(dst *string, key string) {
	if *dst == "" {
		*dst = key
	}
}

// PipelineHandlers holds the constructed stage handlers ready to be handed
// to the orchestrator.
type PipelineHandlers struct {
	STT      *stthandler.STTHandler
	LLM      *llmhandler.LLMHandler
	TTS      *ttshandler.TTSHandler
	Fallback *fallback.Fallback
}

// BuildHandlers constructs every stage handler described by the config.
// Locally synthesized audio is written to store.
func (c PipelineConfig) BuildHandlers(store audiostore.Store, logger *core.Logger) (*PipelineHandlers, error) {
	sttHandler, err := c.STT.BuildHandler(logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	llmHandler, err := c.LLM.BuildHandler(logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	ttsHandler, err := c.TTS.BuildHandler(store, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	fbCfg := c.Fallback
	if fbCfg.AudioBasePath == "" {
		fbCfg.AudioBasePath = c.TTS.HandlerConfig.AudioBasePath
	}
	return &PipelineHandlers{
		STT:      sttHandler,
		LLM:      llmHandler,
		TTS:      ttsHandler,
		Fallback: fallback.New(fbCfg, logger),
	}, nil
}
