package factories

import (
	"voiceagent/core"
	llmhandler "voiceagent/handlers/llm"
	geminillm "voiceagent/services/gemini/llm"
	openaillm "voiceagent/services/openai/llm"
)

// LLMFactoryConfig holds provider-specific configs for LLM service construction.
// Set exactly one provider config; the rest should be left nil.
// Groq, Together, DeepSeek and OpenRouter speak the OpenAI protocol and are
// served by the OpenAI service with a custom base URL.
type LLMFactoryConfig struct {
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	GeminiConfig     *geminillm.Config `json:"gemini,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
}

// Default base URLs for OpenAI-compatible providers.
const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	togetherBaseURL   = "https://api.together.xyz/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
)

// BuildLLMService constructs an LLMService from the given factory config.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (llmhandler.LLMService, error) {
	if err := exactlyOne("llm",
		config.OpenAIConfig != nil,
		config.GeminiConfig != nil,
		config.GroqConfig != nil,
		config.TogetherConfig != nil,
		config.DeepSeekConfig != nil,
		config.OpenRouterConfig != nil,
	); err != nil {
		return nil, err
	}
	switch {
	case config.OpenAIConfig != nil:
		return openaillm.NewOpenAILLMService(*config.OpenAIConfig, logger), nil
	case config.GeminiConfig != nil:
		return geminillm.NewGeminiLLMService(*config.GeminiConfig, logger), nil
	case config.GroqConfig != nil:
		return buildOpenAICompatible(*config.GroqConfig, "groq", groqBaseURL, "llama-3.3-70b-versatile", logger), nil
	case config.TogetherConfig != nil:
		return buildOpenAICompatible(*config.TogetherConfig, "together", togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger), nil
	case config.DeepSeekConfig != nil:
		return buildOpenAICompatible(*config.DeepSeekConfig, "deepseek", deepseekBaseURL, "deepseek-chat", logger), nil
	default:
		return buildOpenAICompatible(*config.OpenRouterConfig, "openrouter", openrouterBaseURL, "openai/gpt-4o-mini", logger), nil
	}
}

// buildOpenAICompatible creates an OpenAI-compatible LLM service, applying default
// base URL, model and provider name if not explicitly set in the config.
func buildOpenAICompatible(cfg openaillm.Config, name, defaultBaseURL, defaultModel string, logger *core.Logger) *openaillm.OpenAILLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = name
	}
	return openaillm.NewOpenAILLMService(cfg, logger)
}
