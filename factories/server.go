package factories

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"voiceagent/core"
	"voiceagent/metrics"
	"voiceagent/obs"
	"voiceagent/orchestrator"
	"voiceagent/transports/httpapi"
	"voiceagent/transports/websocket"
)

const clipPrepareTimeout = 30 * time.Second

// ServerOptions carries process-level settings that do not belong in
// settings.json.
type ServerOptions struct {
	// LogDir, when set, receives one JSONL log file per session.
	LogDir string
	Logger *core.Logger
}

// Server is a fully wired agent ready to be mounted on an http.Server.
type Server struct {
	Handler http.Handler
	Hub     *websocket.Hub
	Storage *Storage

	shutdownTracing func(context.Context) error
	cleanups        []func() error
}

// BuildServer opens storage, constructs the stage handlers and wires them
// into the orchestrator and the HTTP API.
func BuildServer(ctx context.Context, settings SettingsConfig, keys APIKeys, opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = core.GetLogger()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	shutdownTracing, err := obs.Init(ctx, settings.Observability)
	if err != nil {
		return nil, err
	}
	srv := &Server{shutdownTracing: shutdownTracing}

	storage, err := OpenStorage(ctx, settings.Storage, logger)
	if err != nil {
		srv.Close(ctx)
		return nil, err
	}
	srv.Storage = storage

	pipeline := settings.Pipeline
	pipeline.InjectAPIKeys(keys)
	handlers, err := pipeline.BuildHandlers(storage.Audio, logger)
	if err != nil {
		srv.Close(ctx)
		return nil, err
	}
	initialize(ctx, logger, "stt", handlers.STT.Initialize)
	initialize(ctx, logger, "llm", handlers.LLM.Initialize)
	initialize(ctx, logger, "tts", handlers.TTS.Initialize)
	srv.cleanups = append(srv.cleanups, handlers.STT.Cleanup, handlers.LLM.Cleanup, handlers.TTS.Cleanup)

	voice := pipeline.TTS.HandlerConfig.DefaultVoice
	prepCtx, cancel := context.WithTimeout(ctx, clipPrepareTimeout)
	err = handlers.Fallback.Prepare(prepCtx, storage.Audio, func(ctx context.Context, text string) (*core.SynthesizedAudio, error) {
		return handlers.TTS.Service().Synthesize(ctx, text, voice)
	})
	cancel()
	if err != nil {
		// Turns still fail cleanly without a clip.
		logger.With(map[string]any{"error": err}).Warn("apology clip unavailable")
	}

	var m *metrics.Metrics
	if !settings.Server.DisableMetrics {
		m = metrics.NewMetrics(settings.Server.MetricsNamespace)
	}
	hub := websocket.NewHub(websocket.HubConfig{
		CheckOrigin: originChecker(settings.Server.AllowedOrigins),
		Metrics:     m,
		Logger:      logger,
	})
	srv.Hub = hub

	handlers.STT.WithObserver(hub)
	handlers.LLM.WithObserver(hub)
	handlers.TTS.WithObserver(hub)

	orchOpts := []orchestrator.Option{
		orchestrator.WithObserver(hub),
		orchestrator.WithMetrics(m),
		orchestrator.WithLogSink(hub.SessionLogWriter),
		orchestrator.WithLogger(logger),
	}
	if opts.LogDir != "" {
		orchOpts = append(orchOpts, orchestrator.WithSessionLogDir(opts.LogDir))
	}
	orch := orchestrator.New(storage.Sessions, handlers.STT, handlers.LLM, handlers.TTS, handlers.Fallback, orchOpts...)

	api := &httpapi.Handler{
		Orchestrator:   orch,
		Audio:          storage.Audio,
		Speech:         handlers.TTS,
		Fallback:       handlers.Fallback,
		Hub:            hub,
		Metrics:        m,
		MaxUploadBytes: settings.Server.MaxUploadBytes,
		Logger:         logger,
		HealthChecks: []httpapi.HealthCheck{
			{Name: "stt", Critical: true, Check: handlers.STT.CheckHealth},
			{Name: "llm", Critical: true, Check: handlers.LLM.CheckHealth},
			{Name: "tts", Check: handlers.TTS.CheckHealth},
			{Name: "session_store", Critical: true, Check: storage.Sessions.Ping},
		},
	}
	srv.Handler = httpapi.NewRouter(api)

	logger.With(map[string]any{
		"stt": handlers.STT.Service().Name(),
		"llm": handlers.LLM.Service().Name(),
		"tts": handlers.TTS.Service().Name(),
	}).Info("pipeline ready")
	return srv, nil
}

// Close stops the event hub and releases providers, storage and tracing.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.Hub != nil {
		s.Hub.Close()
	}
	for _, fn := range s.cleanups {
		errs = append(errs, fn())
	}
	if s.Storage != nil {
		errs = append(errs, s.Storage.Close())
	}
	if s.shutdownTracing != nil {
		errs = append(errs, s.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}

func initialize(ctx context.Context, logger *core.Logger, stage string, initFn func(context.Context) error) {
	if err := initFn(ctx); err != nil {
		l := logger.With(map[string]any{"stage": stage, "error": err})
		if errors.Is(err, core.ErrNotConfigured) {
			l.Warn("provider not configured, requests to this stage will fail")
			return
		}
		l.Errorf("%s provider failed to initialize", stage)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}
