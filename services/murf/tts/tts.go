// Package murf synthesizes speech with Murf's generate endpoint, which
// returns a hosted audio URL instead of audio bytes.
package murf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"voiceagent/core"
)

const (
	defaultBaseURL = "https://api.murf.ai"
	defaultVoice   = "en-US-natalie"
	maxTextLength  = 3000
)

type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	VoiceID string `json:"voice_id"`
	Format  string `json:"format,omitempty"`
}

type MurfTTSService struct {
	config     Config
	logger     *core.Logger
	httpClient *http.Client
}

type generateRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Format  string `json:"format,omitempty"`
}

type generateResponse struct {
	AudioFile      string  `json:"audioFile"`
	AudioLengthS   float64 `json:"audioLengthInSeconds"`
	RemainingChars int     `json:"remainingCharacterCount"`
}

type errorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    int    `json:"errorCode"`
}

func NewMurfTTSService(config Config, logger *core.Logger) *MurfTTSService {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.VoiceID == "" {
		config.VoiceID = defaultVoice
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &MurfTTSService{
		config:     config,
		logger:     logger.With(map[string]any{"service": "murf-tts"}),
		httpClient: http.DefaultClient,
	}
}

func (s *MurfTTSService) WithHTTPClient(client *http.Client) *MurfTTSService {
	s.httpClient = client
	return s
}

func (s *MurfTTSService) Name() string { return "murf" }

func (s *MurfTTSService) Init(ctx context.Context) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("murf: API key is required: %w", core.ErrNotConfigured)
	}
	return nil
}

func (s *MurfTTSService) Cleanup() error { return nil }

func (s *MurfTTSService) MaxTextLength() int { return maxTextLength }

// Synthesize asks Murf to render text and returns the hosted audio URL.
func (s *MurfTTSService) Synthesize(ctx context.Context, text, voice string) (*core.SynthesizedAudio, error) {
	if s.config.APIKey == "" {
		return nil, s.fail(core.KindUpstreamUnavailable, core.ErrNotConfigured)
	}
	if voice == "" {
		voice = s.config.VoiceID
	}
	reqBody, err := sonic.Marshal(generateRequest{Text: text, VoiceID: voice, Format: s.config.Format})
	if err != nil {
		return nil, s.fail(core.KindInternal, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/v1/speech/generate", bytes.NewReader(reqBody))
	if err != nil {
		return nil, s.fail(core.KindInternal, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("api-key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, core.ClassifyProviderError(ctx, core.StageSynthesize, fmt.Errorf("murf: request failed: %w", err)).WithProvider(s.Name())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ClassifyProviderError(ctx, core.StageSynthesize, fmt.Errorf("murf: read response: %w", err)).WithProvider(s.Name())
	}
	if resp.StatusCode != http.StatusOK {
		kind := core.KindFromHTTPStatus(core.StageSynthesize, resp.StatusCode)
		var errResp errorResponse
		if sonic.Unmarshal(data, &errResp) == nil && errResp.ErrorMessage != "" {
			return nil, s.fail(kind, fmt.Errorf("%s (status %d)", errResp.ErrorMessage, resp.StatusCode))
		}
		return nil, s.fail(kind, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data)))
	}

	var out generateResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, s.fail(core.KindUpstreamUnavailable, fmt.Errorf("parse response: %w", err))
	}
	if out.AudioFile == "" {
		return nil, s.fail(core.KindUpstreamUnavailable, errors.New("response has no audioFile"))
	}

	s.logger.Debug("synthesis finished", "voice", voice, "seconds", out.AudioLengthS, "remaining_chars", out.RemainingChars)
	return &core.SynthesizedAudio{URL: out.AudioFile, MimeType: core.MimeWAV}, nil
}

func (s *MurfTTSService) fail(kind core.ErrorKind, err error) *core.StageError {
	return core.NewStageError(core.StageSynthesize, kind, err).WithProvider(s.Name())
}
