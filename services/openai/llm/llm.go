package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"voiceagent/core"
	"voiceagent/services/openai/apierr"
)

// OpenAILLMService generates replies with the chat completions API. Any
// OpenAI-compatible endpoint works through BaseURL.
type OpenAILLMService struct {
	config Config
	logger *core.Logger

	mu     sync.RWMutex
	client *openai.Client
}

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	// ProviderName overrides the name reported in logs and errors.
	ProviderName string `json:"provider_name,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   300,
		Temperature: 0.7,
	}
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		config: config,
		logger: logger.With(map[string]any{"service": "openai-llm"}),
	}
}

func (s *OpenAILLMService) Name() string {
	if s.config.ProviderName != "" {
		return s.config.ProviderName
	}
	return "openai"
}

// Init creates the client. No request is made.
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return fmt.Errorf("%s: API key is required: %w", s.Name(), core.ErrNotConfigured)
	}
	s.client = apierr.NewClient(s.config.APIKey, s.config.BaseURL)
	return nil
}

// Cleanup performs cleanup operations
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

// Check implements core.HealthChecker.
func (s *OpenAILLMService) Check(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return fmt.Errorf("%s: %w", s.Name(), core.ErrNotConfigured)
	}
	return nil
}

// Complete runs a non-streaming chat completion over messages.
func (s *OpenAILLMService) Complete(ctx context.Context, messages []core.Message) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", core.NewStageError(core.StageGenerate, core.KindUpstreamUnavailable,
			core.ErrNotConfigured).WithProvider(s.Name())
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    s.convertMessages(messages),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apierr.Classify(ctx, core.StageGenerate, s.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", core.NewStageError(core.StageGenerate, core.KindUpstreamUnavailable,
			errors.New("no choices in response")).WithProvider(s.Name())
	}

	s.logger.Debug("completion finished",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// convertMessages converts core messages to OpenAI messages
func (s *OpenAILLMService) convertMessages(messages []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    s.convertRole(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// convertRole converts core role to OpenAI role
func (s *OpenAILLMService) convertRole(role core.MessageRole) string {
	switch role {
	case core.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
