package tts

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"voiceagent/core"
	"voiceagent/services/openai/apierr"
)

// maxInputLength is the speech endpoint's input limit in characters.
const maxInputLength = 4096

type Config struct {
	APIKey  string  `json:"api_key"`
	BaseURL string  `json:"base_url,omitempty"`
	Model   string  `json:"model"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Model: string(openai.TTSModel1),
		Voice: string(openai.VoiceAlloy),
	}
}

// OpenAITTSService synthesizes MP3 audio with the speech endpoint.
type OpenAITTSService struct {
	config Config
	logger *core.Logger

	mu     sync.RWMutex
	client *openai.Client
}

func NewOpenAITTSService(config Config, logger *core.Logger) *OpenAITTSService {
	def := DefaultConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Voice == "" {
		config.Voice = def.Voice
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAITTSService{
		config: config,
		logger: logger.With(map[string]any{"service": "openai-tts"}),
	}
}

func (s *OpenAITTSService) Name() string { return "openai-tts" }

func (s *OpenAITTSService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.APIKey == "" {
		return fmt.Errorf("openai-tts: API key is required: %w", core.ErrNotConfigured)
	}
	s.client = apierr.NewClient(s.config.APIKey, s.config.BaseURL)
	return nil
}

func (s *OpenAITTSService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

// Check implements core.HealthChecker.
func (s *OpenAITTSService) Check(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return fmt.Errorf("%s: %w", s.Name(), core.ErrNotConfigured)
	}
	return nil
}

func (s *OpenAITTSService) MaxTextLength() int { return maxInputLength }

// Synthesize returns MP3 bytes. voice overrides the configured voice when set.
func (s *OpenAITTSService) Synthesize(ctx context.Context, text, voice string) (*core.SynthesizedAudio, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil, core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable,
			core.ErrNotConfigured).WithProvider(s.Name())
	}
	if voice == "" {
		voice = s.config.Voice
	}

	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          s.config.Speed,
	})
	if err != nil {
		return nil, apierr.Classify(ctx, core.StageSynthesize, s.Name(), err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, core.ClassifyProviderError(ctx, core.StageSynthesize, err).WithProvider(s.Name())
	}
	return &core.SynthesizedAudio{Data: data, MimeType: core.MimeMP3}, nil
}
