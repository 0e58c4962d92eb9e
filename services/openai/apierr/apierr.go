// Package apierr maps go-openai errors onto the shared error taxonomy.
package apierr

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"voiceagent/core"
)

// Classify wraps err as a StageError for stage, reading the HTTP status
// carried by go-openai's error types when present.
func Classify(ctx context.Context, stage core.Stage, provider string, err error) *core.StageError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return core.NewStageError(stage, core.KindFromHTTPStatus(stage, apiErr.HTTPStatusCode), err).WithProvider(provider)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return core.NewStageError(stage, core.KindFromHTTPStatus(stage, reqErr.HTTPStatusCode), err).WithProvider(provider)
	}
	return core.ClassifyProviderError(ctx, stage, err).WithProvider(provider)
}

// NewClient builds a go-openai client, pointing it at baseURL when set so
// that OpenAI-compatible providers share the same code path.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
