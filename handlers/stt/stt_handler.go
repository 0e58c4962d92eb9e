package stt

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"voiceagent/core"
	"voiceagent/events/stt"
	"voiceagent/utils/audio"
)

type STTService interface {
	core.IService
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Transcript is the recognized text and the provider that produced it.
type Transcript struct {
	Text     string
	Provider string
}

type STTHandler struct {
	*core.BaseHandler[STTService]
	config   STTConfig
	observer core.EventObserver
	logger   *core.Logger
}

func NewSTTHandler(service STTService, backupServices []STTService, config STTConfig, logger *core.Logger) *STTHandler {
	def := DefaultConfig()
	if len(config.SupportedMimeTypes) == 0 {
		config.SupportedMimeTypes = def.SupportedMimeTypes
	}
	if config.ULawSampleRate <= 0 {
		config.ULawSampleRate = def.ULawSampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]any{"handler": "stt"})
	return &STTHandler{
		BaseHandler: core.NewBaseHandler(service, backupServices, logger),
		config:      config,
		logger:      logger,
	}
}

// WithObserver sets where stage events are published. Returns the handler to allow chaining.
func (h *STTHandler) WithObserver(observer core.EventObserver) *STTHandler {
	h.observer = observer
	return h
}

// Transcribe validates the payload format and converts it to text. An empty
// transcript is not an error here.
func (h *STTHandler) Transcribe(ctx context.Context, payload core.AudioPayload) (*Transcript, error) {
	mime := audio.ResolveMimeType(payload.MimeType, payload.Data)
	if !slices.Contains(h.config.SupportedMimeTypes, mime) {
		return nil, core.NewStageError(core.StageTranscribe, core.KindUnsupportedAudio,
			fmt.Errorf("unsupported audio type %q", payload.MimeType))
	}

	data := payload.Data
	if mime == core.MimeULaw {
		wav, err := audio.ULawToWav(data, h.config.ULawSampleRate)
		if err != nil {
			return nil, core.NewStageError(core.StageTranscribe, core.KindUnsupportedAudio, err)
		}
		data, mime = wav, core.MimeWAV
	}

	core.Publish(ctx, h.observer, &stt.TranscriptionStartedEvent{MimeType: mime, Bytes: len(data)}, "STTHandler")

	var text string
	svc, err := h.Run(ctx, core.StageTranscribe, func(s STTService) error {
		attemptCtx, cancel := h.attemptContext(ctx)
		defer cancel()
		var err error
		text, err = s.Transcribe(attemptCtx, data, mime)
		return err
	})
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	core.LoggerFromContext(ctx, h.logger).Debug("transcribed", "provider", svc.Name(), "chars", len(text))
	core.Publish(ctx, h.observer, &stt.TranscriptionCompletedEvent{Text: text, Provider: svc.Name()}, "STTHandler")
	return &Transcript{Text: text, Provider: svc.Name()}, nil
}

func (h *STTHandler) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.config.TimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(h.config.TimeoutMs)*time.Millisecond)
}
