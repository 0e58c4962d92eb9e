package stt

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai"

	"voiceagent/core"
	"voiceagent/services/openai/apierr"
	"voiceagent/utils/audio"
)

// Config configures Whisper transcription.
type Config struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

func DefaultConfig() Config {
	return Config{Model: openai.Whisper1}
}

// WhisperSTTService transcribes whole recordings with the audio
// transcriptions endpoint.
type WhisperSTTService struct {
	config Config
	logger *core.Logger

	mu     sync.RWMutex
	client *openai.Client
}

func NewWhisperSTTService(config Config, logger *core.Logger) *WhisperSTTService {
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &WhisperSTTService{
		config: config,
		logger: logger.With(map[string]any{"service": "openai-whisper"}),
	}
}

func (s *WhisperSTTService) Name() string { return "openai-whisper" }

func (s *WhisperSTTService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.APIKey == "" {
		return fmt.Errorf("openai-whisper: API key is required: %w", core.ErrNotConfigured)
	}
	s.client = apierr.NewClient(s.config.APIKey, s.config.BaseURL)
	return nil
}

func (s *WhisperSTTService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

// Check implements core.HealthChecker.
func (s *WhisperSTTService) Check(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return fmt.Errorf("%s: %w", s.Name(), core.ErrNotConfigured)
	}
	return nil
}

// Transcribe uploads data as a file named after its mime type; the endpoint
// infers the container from the extension.
func (s *WhisperSTTService) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", core.NewStageError(core.StageTranscribe, core.KindUpstreamUnavailable,
			core.ErrNotConfigured).WithProvider(s.Name())
	}

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		FilePath: "recording" + audio.Extension(mimeType),
		Reader:   bytes.NewReader(data),
		Language: s.config.Language,
		Prompt:   s.config.Prompt,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", apierr.Classify(ctx, core.StageTranscribe, s.Name(), err)
	}
	return resp.Text, nil
}
