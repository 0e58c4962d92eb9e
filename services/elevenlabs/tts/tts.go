package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"voiceagent/core"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io"
	defaultModel        = "eleven_multilingual_v2"
	defaultVoice        = "21m00Tcm4TlvDq8ikWAM"
	defaultOutputFormat = "mp3_44100_128"
	maxTextLength       = 5000
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id"`
	OutputFormat string `json:"output_format"`

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsTTS synthesizes a whole reply in one request and returns mp3 bytes.
type ElevenLabsTTS struct {
	config     ElevenLabsTTSConfig
	logger     *core.Logger
	httpClient *http.Client
}

type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type errorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// NewElevenLabsTTS creates a new ElevenLabs TTS service.
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.ModelID == "" {
		config.ModelID = defaultModel
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultVoice
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaultOutputFormat
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config:     config,
		logger:     logger.With(map[string]any{"service": "elevenlabs-tts"}),
		httpClient: http.DefaultClient,
	}
}

// WithHTTPClient replaces the HTTP client.
func (s *ElevenLabsTTS) WithHTTPClient(client *http.Client) *ElevenLabsTTS {
	s.httpClient = client
	return s
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (s *ElevenLabsTTS) Init(ctx context.Context) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("elevenlabs: API key is required: %w", core.ErrNotConfigured)
	}
	return nil
}

func (s *ElevenLabsTTS) Cleanup() error { return nil }

func (s *ElevenLabsTTS) MaxTextLength() int { return maxTextLength }

// Synthesize converts text to mp3. An empty voice uses the configured one.
func (s *ElevenLabsTTS) Synthesize(ctx context.Context, text, voice string) (*core.SynthesizedAudio, error) {
	if s.config.APIKey == "" {
		return nil, s.fail(core.KindUpstreamUnavailable, core.ErrNotConfigured)
	}
	if voice == "" {
		voice = s.config.VoiceID
	}
	body := synthesizeRequest{Text: text, ModelID: s.config.ModelID}
	if s.config.Stability != 0 || s.config.SimilarityBoost != 0 {
		body.VoiceSettings = &voiceSettings{
			Stability:       s.config.Stability,
			SimilarityBoost: s.config.SimilarityBoost,
		}
	}
	reqBody, err := sonic.Marshal(body)
	if err != nil {
		return nil, s.fail(core.KindInternal, fmt.Errorf("marshal request: %w", err))
	}

	reqURL := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		s.config.BaseURL, url.PathEscape(voice), url.QueryEscape(s.config.OutputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, s.fail(core.KindInternal, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("xi-api-key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", core.MimeMP3)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, core.ClassifyProviderError(ctx, core.StageSynthesize, fmt.Errorf("elevenlabs: request failed: %w", err)).WithProvider(s.Name())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ClassifyProviderError(ctx, core.StageSynthesize, fmt.Errorf("elevenlabs: read response: %w", err)).WithProvider(s.Name())
	}
	if resp.StatusCode != http.StatusOK {
		kind := core.KindFromHTTPStatus(core.StageSynthesize, resp.StatusCode)
		var errResp errorResponse
		if sonic.Unmarshal(data, &errResp) == nil && errResp.Detail.Message != "" {
			return nil, s.fail(kind, fmt.Errorf("%s (status %d)", errResp.Detail.Message, resp.StatusCode))
		}
		return nil, s.fail(kind, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data)))
	}
	if len(data) == 0 {
		return nil, s.fail(core.KindUpstreamUnavailable, errors.New("empty audio"))
	}

	s.logger.Debug("synthesis finished", "voice", voice, "bytes", len(data))
	return &core.SynthesizedAudio{Data: data, MimeType: core.MimeMP3}, nil
}

func (s *ElevenLabsTTS) fail(kind core.ErrorKind, err error) *core.StageError {
	return core.NewStageError(core.StageSynthesize, kind, err).WithProvider(s.Name())
}
