package stt

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

// DeepgramConfig holds configuration options for Deepgram prerecorded STT.
type DeepgramConfig struct {
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url"`
	Model       string   `json:"model"`
	Language    string   `json:"language"`
	Punctuate   bool     `json:"punctuate"`
	SmartFormat bool     `json:"smart_format"`
	Keyterms    []string `json:"keyterms,omitempty"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		Punctuate:   true,
		SmartFormat: true,
	}
}

// DeepgramSTTService posts whole recordings to /v1/listen.
type DeepgramSTTService struct {
	config     *DeepgramConfig
	logger     *core.Logger
	httpClient *http.Client
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramSTTService{
		config:     config,
		logger:     logger.With(map[string]any{"service": "deepgram-stt"}),
		httpClient: http.DefaultClient,
	}
}

// WithHTTPClient replaces the HTTP client. Returns the service to allow chaining.
func (s *DeepgramSTTService) WithHTTPClient(client *http.Client) *DeepgramSTTService {
	s.httpClient = client
	return s
}

func (s *DeepgramSTTService) Name() string { return "deepgram" }

func (s *DeepgramSTTService) Init(ctx context.Context) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("deepgram: API key is required: %w", core.ErrNotConfigured)
	}
	return nil
}

func (s *DeepgramSTTService) Cleanup() error { return nil }

// Check implements core.HealthChecker.
func (s *DeepgramSTTService) Check(ctx context.Context) error {
	if s.config.APIKey == "" {
		return errors.New("deepgram: API key missing")
	}
	return nil
}

// Transcribe implements the transcription service contract.
func (s *DeepgramSTTService) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	if s.config.APIKey == "" {
		return "", s.fail(core.KindUpstreamUnavailable, core.ErrNotConfigured)
	}
	reqURL := fmt.Sprintf("%s/v1/listen?%s", strings.TrimSuffix(s.config.BaseURL, "/"), s.buildParams().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", s.fail(core.KindInternal, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+s.config.APIKey)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", core.ClassifyProviderError(ctx, core.StageTranscribe, fmt.Errorf("deepgram: request failed: %w", err)).WithProvider(s.Name())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.ClassifyProviderError(ctx, core.StageTranscribe, fmt.Errorf("deepgram: read response: %w", err)).WithProvider(s.Name())
	}

	if resp.StatusCode != http.StatusOK {
		kind := core.KindFromHTTPStatus(core.StageTranscribe, resp.StatusCode)
		var errResp errorResponse
		if sonic.Unmarshal(body, &errResp) == nil && errResp.ErrMsg != "" {
			return "", s.fail(kind, fmt.Errorf("%s (code: %s, status %d)", errResp.ErrMsg, errResp.ErrCode, resp.StatusCode))
		}
		return "", s.fail(kind, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	var dgResp deepgramResponse
	if err := sonic.Unmarshal(body, &dgResp); err != nil {
		return "", s.fail(core.KindUpstreamUnavailable, fmt.Errorf("parse response: %w", err))
	}
	if len(dgResp.Results.Channels) == 0 || len(dgResp.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	alt := dgResp.Results.Channels[0].Alternatives[0]
	s.logger.Debug("transcription finished", "request_id", dgResp.Metadata.RequestID, "confidence", alt.Confidence)
	return alt.Transcript, nil
}

func (s *DeepgramSTTService) buildParams() url.Values {
	params := url.Values{}
	params.Set("model", s.config.Model)
	if s.config.Language != "" {
		params.Set("language", s.config.Language)
	}
	if s.config.Punctuate {
		params.Set("punctuate", "true")
	}
	if s.config.SmartFormat {
		params.Set("smart_format", "true")
	}
	for _, k := range s.config.Keyterms {
		params.Add("keyterm", k)
	}
	return params
}

func (s *DeepgramSTTService) fail(kind core.ErrorKind, err error) *core.StageError {
	return core.NewStageError(core.StageTranscribe, kind, err).WithProvider(s.Name())
}

type deepgramResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type errorResponse struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}
