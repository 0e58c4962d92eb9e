package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"voiceagent/core"
)

const defaultModel = "gemini-2.0-flash"

// Config configures the Gemini Developer API backend.
type Config struct {
	APIKey          string  `json:"api_key"`
	BaseURL         string  `json:"base_url,omitempty"`
	Model           string  `json:"model"`
	MaxOutputTokens int32   `json:"max_output_tokens,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
}

func DefaultConfig() Config {
	return Config{Model: defaultModel, MaxOutputTokens: 300}
}

// GeminiLLMService generates replies with models.generateContent.
type GeminiLLMService struct {
	config Config
	logger *core.Logger

	mu     sync.RWMutex
	client *genai.Client
}

func NewGeminiLLMService(config Config, logger *core.Logger) *GeminiLLMService {
	if config.Model == "" {
		config.Model = defaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &GeminiLLMService{
		config: config,
		logger: logger.With(map[string]any{"service": "gemini-llm"}),
	}
}

func (s *GeminiLLMService) Name() string { return "gemini" }

func (s *GeminiLLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.APIKey == "" {
		return fmt.Errorf("gemini: API key is required: %w", core.ErrNotConfigured)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      s.config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: s.config.BaseURL},
	})
	if err != nil {
		return fmt.Errorf("gemini: create client: %w", err)
	}
	s.client = client
	return nil
}

func (s *GeminiLLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

// Check implements core.HealthChecker.
func (s *GeminiLLMService) Check(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return fmt.Errorf("gemini: %w", core.ErrNotConfigured)
	}
	return nil
}

// Complete sends system messages as the system instruction and the rest as
// alternating user/model contents.
func (s *GeminiLLMService) Complete(ctx context.Context, messages []core.Message) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", core.NewStageError(core.StageGenerate, core.KindUpstreamUnavailable,
			core.ErrNotConfigured).WithProvider(s.Name())
	}

	contents, system := s.convertMessages(messages)
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if s.config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = s.config.MaxOutputTokens
	}
	if s.config.Temperature > 0 {
		config.Temperature = genai.Ptr(s.config.Temperature)
	}

	resp, err := client.Models.GenerateContent(ctx, s.config.Model, contents, config)
	if err != nil {
		return "", s.classify(ctx, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (s *GeminiLLMService) convertMessages(messages []core.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case core.MessageRoleSystem:
			system = append(system, m.Content)
		case core.MessageRoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func (s *GeminiLLMService) classify(ctx context.Context, err error) *core.StageError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return core.NewStageError(core.StageGenerate, core.KindFromHTTPStatus(core.StageGenerate, apiErr.Code), err).WithProvider(s.Name())
	}
	return core.ClassifyProviderError(ctx, core.StageGenerate, err).WithProvider(s.Name())
}
