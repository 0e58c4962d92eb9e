// Package orchestrator runs one conversational turn: transcribe, generate,
// synthesize, then record the exchange in the session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voiceagent/core"
	"voiceagent/events/turn"
	"voiceagent/fallback"
	"voiceagent/handlers/llm"
	"voiceagent/handlers/stt"
	"voiceagent/handlers/tts"
	"voiceagent/metrics"
	"voiceagent/obs"
	"voiceagent/session"
)

type Transcriber interface {
	Transcribe(ctx context.Context, payload core.AudioPayload) (*stt.Transcript, error)
}

type Generator interface {
	Generate(ctx context.Context, history []core.Turn, userText string) (*llm.Reply, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.Speech, error)
}

type Orchestrator struct {
	store       session.Store
	locker      *session.KeyedLocker
	transcriber Transcriber
	generator   Generator
	synthesizer Synthesizer
	fallback    *fallback.Fallback
	observer    core.EventObserver
	metrics     *metrics.Metrics
	logSinks    []LogSink
	logger      *core.Logger
}

// LogSink opens a per-session log destination for one run.
type LogSink func(sessionKey string) (core.LogWriter, error)

type Option func(*Orchestrator)

// WithObserver receives turn lifecycle events.
func WithObserver(observer core.EventObserver) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLocker shares a locker with other components touching the same sessions.
func WithLocker(l *session.KeyedLocker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithSessionLogDir writes a JSONL log per session under dir.
func WithSessionLogDir(dir string) Option {
	return WithLogSink(func(sessionKey string) (core.LogWriter, error) {
		return core.NewSessionLogWriter(dir, sessionKey)
	})
}

// WithLogSink tees each run's log lines into the writer sink opens.
func WithLogSink(sink LogSink) Option {
	return func(o *Orchestrator) { o.logSinks = append(o.logSinks, sink) }
}

func WithLogger(logger *core.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New builds an orchestrator. synthesizer may be nil, in which case every
// successful turn is partial.
func New(store session.Store, transcriber Transcriber, generator Generator, synthesizer Synthesizer, fb *fallback.Fallback, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		fallback:    fb,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.locker == nil {
		o.locker = session.NewKeyedLocker()
	}
	if o.fallback == nil {
		o.fallback = fallback.New(fallback.Config{}, o.logger)
	}
	if o.logger == nil {
		o.logger = core.GetLogger()
	}
	o.logger = o.logger.With(map[string]any{"component": "orchestrator"})
	return o
}

// Store returns the session store the orchestrator records turns in.
func (o *Orchestrator) Store() session.Store {
	return o.store
}

// Locker returns the per-session lock used to serialize runs.
func (o *Orchestrator) Locker() *session.KeyedLocker {
	return o.locker
}

func (o *Orchestrator) openLogSinks(sessionKey string, logger *core.Logger) core.LogWriter {
	var writers core.MultiLogWriter
	for _, sink := range o.logSinks {
		w, err := sink(sessionKey)
		if err != nil {
			logger.Warn("session log unavailable", "error", err)
			continue
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		return nil
	}
	return writers
}

// run carries the per-turn bookkeeping.
type run struct {
	o      *Orchestrator
	ctx    context.Context
	result *Result
	state  State
	start  time.Time
	logger *core.Logger
}

func (r *run) enter(state State) {
	if r.state.Terminal() {
		r.logger.Error("turn already ended", "state", r.state, "to", state)
		return
	}
	if !CanTransition(r.state, state) {
		r.logger.Error("invalid turn transition", "from", r.state, "to", state)
	}
	r.state = state
	r.result.States = append(r.result.States, state)
	core.Publish(r.ctx, r.o.observer, &turn.TurnStageEvent{TurnID: r.result.TurnID, State: string(state)}, "Orchestrator")
}

// turnID uses the caller's id when it is a valid UUID.
func turnID(ctx context.Context) string {
	if id, err := uuid.Parse(core.TurnIDFromContext(ctx)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Run executes one turn for sessionKey. It never returns nil.
func (o *Orchestrator) Run(ctx context.Context, sessionKey string, payload core.AudioPayload) *Result {
	r := &run{
		o:     o,
		ctx:   core.ContextWithSessionKey(ctx, sessionKey),
		state: StateReceived,
		start: time.Now(),
		result: &Result{
			TurnID:     turnID(ctx),
			SessionKey: sessionKey,
			States:     []State{StateReceived},
		},
	}
	r.logger = o.logger.With(map[string]any{"session_key": sessionKey, "turn_id": r.result.TurnID})
	if o.metrics != nil {
		o.metrics.RecordTurnStart(payload.Len())
	}

	if payload.Len() < core.MinAudioBytes {
		err := core.NewStageError(core.StageUpload, core.KindRecordingTooShort,
			fmt.Errorf("got %d bytes, need at least %d", payload.Len(), core.MinAudioBytes))
		return r.fail(err)
	}
	if sessionKey == "" {
		return r.fail(core.NewStageError(core.StageSession, core.KindInternal, session.ErrEmptyKey))
	}

	unlock, err := o.locker.Lock(r.ctx, sessionKey)
	if err != nil {
		return r.fail(core.ClassifyProviderError(r.ctx, core.StageUpload, err))
	}
	defer unlock()

	if w := o.openLogSinks(sessionKey, r.logger); w != nil {
		defer w.Close()
		r.logger = core.NewSessionLogger(r.logger, w)
		r.ctx = core.ContextWithSessionLogger(r.ctx, r.logger)
	}

	sess, err := o.store.GetOrCreate(r.ctx, sessionKey)
	if err != nil {
		return r.fail(storeError(r.ctx, err))
	}
	r.logger.Info("turn started", "bytes", payload.Len(), "mime_type", payload.MimeType, "history", len(sess.Turns))

	// Transcribe
	r.enter(StateTranscribing)
	var transcript *stt.Transcript
	err = r.stage(core.StageTranscribe, func(ctx context.Context) (string, error) {
		var err error
		transcript, err = o.transcriber.Transcribe(ctx, payload)
		if err != nil {
			return "", err
		}
		return transcript.Provider, nil
	})
	if err != nil {
		return r.fail(err)
	}
	if transcript.Text == "" {
		return r.fail(core.NewStageError(core.StageTranscribe, core.KindEmptyInput, errors.New("no speech detected in the audio")).WithProvider(transcript.Provider))
	}
	r.result.UserText = transcript.Text
	r.enter(StateTranscribed)

	// Generate
	r.enter(StateGenerating)
	var reply *llm.Reply
	err = r.stage(core.StageGenerate, func(ctx context.Context) (string, error) {
		var err error
		reply, err = o.generator.Generate(ctx, sess.Turns, transcript.Text)
		if err != nil {
			return "", err
		}
		return reply.Provider, nil
	})
	if err != nil {
		return r.fail(err)
	}
	r.result.AssistantText = reply.Text
	r.enter(StateGenerated)

	// Synthesize. A failure here downgrades the outcome instead of ending it.
	r.enter(StateSynthesizing)
	var speech *tts.Speech
	var synthErr error
	if o.synthesizer == nil {
		synthErr = core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable, core.ErrNotConfigured)
	} else {
		synthErr = r.stage(core.StageSynthesize, func(ctx context.Context) (string, error) {
			var err error
			speech, err = o.synthesizer.Synthesize(ctx, reply.Text)
			if err != nil {
				return "", err
			}
			return speech.Provider, nil
		})
	}
	if err := r.ctx.Err(); err != nil {
		return r.fail(core.ClassifyProviderError(r.ctx, core.StageSynthesize, err))
	}

	var audio *core.AudioRef
	if synthErr == nil {
		ref := speech.Audio
		audio = &ref
		r.result.Truncated = speech.Truncated
		if speech.Truncated && o.metrics != nil {
			o.metrics.RecordTruncation(speech.Provider)
		}
	}

	if err := o.store.AppendTurn(r.ctx, sessionKey, core.NewTurn(transcript.Text, reply.Text, audio)); err != nil {
		return r.fail(storeError(r.ctx, err))
	}

	if synthErr != nil {
		r.result.Status = StatusPartial
		r.result.Err = synthErr
		r.result.Audio = o.fallback.Clip()
		r.logger.Warn("speech synthesis failed, returning text only", "error", synthErr)
	} else {
		r.result.Status = StatusSuccess
		r.result.Audio = audio
	}
	return r.complete()
}

// stage runs fn inside a span and records its duration.
func (r *run) stage(stage core.Stage, fn func(ctx context.Context) (string, error)) error {
	ctx, span := obs.StartStage(r.ctx, stage)
	started := time.Now()
	provider, err := fn(ctx)
	if err != nil {
		err = core.ClassifyProviderError(r.ctx, stage, err)
	}
	obs.EndSpan(span, err)
	if r.o.metrics != nil {
		r.o.metrics.RecordStage(stage, provider, time.Since(started), err)
	}
	return err
}

func (r *run) complete() *Result {
	r.enter(StateCompleted)
	res := r.result
	audioURL := ""
	if res.Audio != nil {
		audioURL = res.Audio.URL
	}
	core.Publish(r.ctx, r.o.observer, &turn.TurnCompletedEvent{
		TurnID:        res.TurnID,
		Status:        string(res.Status),
		UserText:      res.UserText,
		AssistantText: res.AssistantText,
		AudioURL:      audioURL,
	}, "Orchestrator")
	if r.o.metrics != nil {
		r.o.metrics.RecordTurnEnd(string(res.Status), "", time.Since(r.start))
	}
	r.logger.Info("turn completed", "status", res.Status, "recorded", res.Recorded(), "duration_ms", time.Since(r.start).Milliseconds())
	return res
}

func (r *run) fail(err error) *Result {
	failedIn := stageOf(r.state)
	if s := core.StageOf(err); s != "" {
		failedIn = s
	}
	r.state = StateFailed
	res := r.result
	res.States = append(res.States, StateFailed)
	res.Status = StatusError
	res.Err = err
	res.FallbackMessage = r.o.fallback.Message(err)
	if !core.IsKind(err, core.KindUserCancelled) {
		res.Audio = r.o.fallback.Clip()
	}

	kind := core.KindOf(err)
	core.Publish(r.ctx, r.o.observer, &turn.TurnStageEvent{TurnID: res.TurnID, State: string(StateFailed)}, "Orchestrator")
	core.Publish(r.ctx, r.o.observer, &turn.TurnFailedEvent{
		TurnID: res.TurnID,
		Stage:  string(failedIn),
		Kind:   string(kind),
		Error:  err.Error(),
	}, "Orchestrator")
	if r.o.metrics != nil {
		r.o.metrics.RecordTurnEnd(string(StatusError), kind, time.Since(r.start))
	}

	if kind == core.KindUserCancelled || kind == core.KindRecordingTooShort || kind == core.KindEmptyInput {
		r.logger.Info("turn ended without reply", "stage", failedIn, "kind", kind)
	} else {
		r.logger.Error("turn failed", "stage", failedIn, "kind", kind, "error", err)
	}
	return res
}

func storeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return core.ClassifyProviderError(ctx, core.StageSession, err)
	}
	return core.NewStageError(core.StageSession, core.KindInternal, fmt.Errorf("session store: %w", err))
}
