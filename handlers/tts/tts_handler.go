package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voiceagent/audiostore"
	"voiceagent/core"
	"voiceagent/events/tts"
)

type TTSService interface {
	core.IService
	MaxTextLength() int
	Synthesize(ctx context.Context, text, voice string) (*core.SynthesizedAudio, error)
}

// Speech is a playable rendering of a reply.
type Speech struct {
	Audio     core.AudioRef
	Provider  string
	Truncated bool
}

type TTSHandler struct {
	*core.BaseHandler[TTSService]
	config   TTSConfig
	store    audiostore.Store
	observer core.EventObserver
	logger   *core.Logger
}

func NewTTSHandler(service TTSService, backupServices []TTSService, store audiostore.Store, config TTSConfig, logger *core.Logger) *TTSHandler {
	if config.AudioBasePath == "" {
		config.AudioBasePath = DefaultConfig().AudioBasePath
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]any{"handler": "tts"})
	return &TTSHandler{
		BaseHandler: core.NewBaseHandler(service, backupServices, logger),
		config:      config,
		store:       store,
		logger:      logger,
	}
}

func (h *TTSHandler) WithObserver(observer core.EventObserver) *TTSHandler {
	h.observer = observer
	return h
}

// Synthesize renders text with the default voice.
func (h *TTSHandler) Synthesize(ctx context.Context, text string) (*Speech, error) {
	return h.SynthesizeVoice(ctx, text, h.config.DefaultVoice)
}

// SynthesizeVoice renders text with voice. Text over the provider limit is
// truncated rather than rejected.
func (h *TTSHandler) SynthesizeVoice(ctx context.Context, text, voice string) (*Speech, error) {
	text = normalizeTextForTTS(text)
	if text == "" {
		return nil, core.NewStageError(core.StageSynthesize, core.KindEmptyInput, errors.New("nothing to speak"))
	}

	core.Publish(ctx, h.observer, &tts.SynthesisStartedEvent{Characters: len(text)}, "TTSHandler")

	var (
		out       *core.SynthesizedAudio
		truncated bool
	)
	svc, err := h.Run(ctx, core.StageSynthesize, func(s TTSService) error {
		spoken, cut := truncateAtWord(text, h.limitFor(s))
		attemptCtx, cancel := h.attemptContext(ctx)
		defer cancel()
		audio, err := s.Synthesize(attemptCtx, spoken, voice)
		if err != nil {
			return err
		}
		if audio == nil || (len(audio.Data) == 0 && audio.URL == "") {
			return core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable, errors.New("no audio returned")).WithProvider(s.Name())
		}
		out, truncated = audio, cut
		return nil
	})
	if err != nil {
		return nil, err
	}

	ref, err := h.reference(ctx, out)
	if err != nil {
		return nil, err
	}

	logger := core.LoggerFromContext(ctx, h.logger)
	if truncated {
		logger.Warn("reply truncated for synthesis", "provider", svc.Name(), "chars", len(text), "limit", h.limitFor(svc))
	}
	logger.Debug("synthesized reply", "provider", svc.Name(), "url", ref.URL)
	core.Publish(ctx, h.observer, &tts.SynthesisCompletedEvent{AudioURL: ref.URL, Provider: svc.Name(), Truncated: truncated}, "TTSHandler")
	return &Speech{Audio: ref, Provider: svc.Name(), Truncated: truncated}, nil
}

func (h *TTSHandler) reference(ctx context.Context, audio *core.SynthesizedAudio) (core.AudioRef, error) {
	if audio.URL != "" {
		return core.AudioRef{URL: audio.URL, MimeType: audio.MimeType}, nil
	}
	if h.store == nil {
		return core.AudioRef{}, core.NewStageError(core.StageSynthesize, core.KindInternal, errors.New("no audio store configured"))
	}
	id, err := h.store.Put(ctx, audio.Data, audio.MimeType)
	if err != nil {
		return core.AudioRef{}, core.NewStageError(core.StageSynthesize, core.KindInternal, fmt.Errorf("store audio: %w", err))
	}
	return core.AudioRef{URL: audiostore.URLFor(h.config.AudioBasePath, id), MimeType: audio.MimeType}, nil
}

func (h *TTSHandler) limitFor(s TTSService) int {
	limit := s.MaxTextLength()
	if h.config.MaxTextLength > 0 && (limit <= 0 || h.config.MaxTextLength < limit) {
		limit = h.config.MaxTextLength
	}
	return limit
}

func (h *TTSHandler) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.config.TimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(h.config.TimeoutMs)*time.Millisecond)
}
