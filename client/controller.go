package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"voiceagent/core"
)

const eventBufferSize = 64

// Microphone captures one recording at a time.
type Microphone interface {
	// RequestPermission blocks until the user grants or refuses access.
	RequestPermission(ctx context.Context) error
	Start() error
	// Stop ends capture and returns what was recorded.
	Stop() (core.AudioPayload, error)
	Release()
}

// Player plays the audio at url until it ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, url string) error
}

type ControllerConfig struct {
	SessionKey string
	Microphone Microphone
	Player     Player
	API        API
	// Keys persists the session key when it changes. Optional.
	Keys *KeyStore
	// OnChange receives a snapshot after every event. It runs on the
	// event loop and must not block.
	OnChange func(Model)
	Logger   *core.Logger
}

// Controller owns the Model and applies every event on a single goroutine.
// Effects run here too; slow ones finish in the background and report back
// as events.
type Controller struct {
	config ControllerConfig
	logger *core.Logger
	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	model Model

	// Touched only by the loop goroutine.
	cancelRequest  context.CancelFunc
	cancelPlayback context.CancelFunc
}

// stopRequested asks the loop to end recording; it becomes UserStopped
// once the microphone hands over the audio.
type stopRequested struct{}

func (stopRequested) isEvent() {}

func NewController(config ControllerConfig) *Controller {
	if config.Logger == nil {
		config.Logger = core.GetLogger()
	}
	return &Controller{
		config: config,
		logger: config.Logger.With(map[string]any{"component": "client"}),
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		model:  NewModel(config.SessionKey),
	}
}

// Model returns a snapshot of the current model.
func (c *Controller) Model() Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model.Clone()
}

// Dispatch queues ev for the loop. It is safe from any goroutine and drops
// the event once the loop has exited.
func (c *Controller) Dispatch(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Begin starts a new attempt and returns its ID.
func (c *Controller) Begin() string {
	id := uuid.NewString()
	c.Dispatch(UserInitiated{AttemptID: id})
	return id
}

func (c *Controller) Stop()   { c.Dispatch(stopRequested{}) }
func (c *Controller) Cancel() { c.Dispatch(UserCancelled{}) }

func (c *Controller) Interrupt(reason string) {
	c.Dispatch(ExternalInterrupt{Reason: reason})
}

func (c *Controller) NewSession() { c.Dispatch(NewSession{}) }

// Run processes events until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev Event) {
	if _, ok := ev.(stopRequested); ok {
		ev = c.stopRecording()
		if ev == nil {
			return
		}
	}

	c.mu.Lock()
	prev := c.model.State
	next, effects := Transition(c.model, ev)
	c.model = next
	snapshot := next.Clone()
	c.mu.Unlock()

	if prev != next.State {
		c.logger.Debug("client state changed", "from", prev, "to", next.State)
	}
	for _, eff := range effects {
		c.execute(ctx, eff)
	}
	if c.config.OnChange != nil {
		c.config.OnChange(snapshot)
	}
}

func (c *Controller) stopRecording() Event {
	m := c.Model()
	if m.State != StateRecording {
		return nil
	}
	audio, err := c.config.Microphone.Stop()
	if err != nil {
		return MicrophoneFailed{AttemptID: m.attemptID(), Err: err}
	}
	return UserStopped{AttemptID: m.attemptID(), Audio: audio}
}

func (c *Controller) execute(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case RequestPermission:
		go func() {
			if err := c.config.Microphone.RequestPermission(ctx); err != nil {
				c.Dispatch(PermissionDenied{AttemptID: e.AttemptID, Err: err})
				return
			}
			c.Dispatch(PermissionGranted{AttemptID: e.AttemptID})
		}()

	case StartRecording:
		if err := c.config.Microphone.Start(); err != nil {
			c.logger.Warn("microphone failed to start", "error", err)
			go c.Dispatch(MicrophoneFailed{AttemptID: e.AttemptID, Err: err})
		}

	case DiscardRecording:
		if _, err := c.config.Microphone.Stop(); err != nil {
			c.logger.Debug("discarding recording", "error", err)
		}
		c.config.Microphone.Release()

	case ReleaseMicrophone:
		c.config.Microphone.Release()

	case SubmitTurn:
		reqCtx, cancel := context.WithCancel(core.ContextWithTurnID(ctx, e.AttemptID))
		c.cancelRequest = cancel
		go func() {
			defer cancel()
			resp, err := c.config.API.SubmitTurn(reqCtx, e.SessionKey, e.Audio)
			if reqCtx.Err() != nil {
				// Aborted: the attempt already ended, report nothing.
				return
			}
			if err != nil {
				c.logger.Warn("turn request failed", "error", err)
				c.Dispatch(RequestFailed{AttemptID: e.AttemptID, Err: err})
				return
			}
			c.Dispatch(ServerResponded{AttemptID: e.AttemptID, Response: resp})
		}()

	case AbortRequest:
		if c.cancelRequest != nil {
			c.cancelRequest()
			c.cancelRequest = nil
		}

	case PlayAudio:
		playCtx, cancel := context.WithCancel(ctx)
		c.cancelPlayback = cancel
		go func() {
			defer cancel()
			err := c.config.Player.Play(playCtx, e.URL)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			c.Dispatch(PlaybackEnded{AttemptID: e.AttemptID, Err: err})
		}()

	case StopPlayback:
		if c.cancelPlayback != nil {
			c.cancelPlayback()
			c.cancelPlayback = nil
		}

	case ResetSession:
		go func() {
			key, err := c.config.API.ResetSession(ctx, e.SessionKey)
			if err != nil {
				c.logger.Warn("server session reset failed, issuing a local key", "error", err)
				key = uuid.NewString()
			}
			if c.config.Keys != nil {
				if err := c.config.Keys.Save(key); err != nil {
					c.logger.Warn("failed to persist session key", "error", err)
				}
			}
			c.Dispatch(SessionChanged{SessionKey: key})
		}()
	}
}

func (c *Controller) shutdown() {
	if c.cancelRequest != nil {
		c.cancelRequest()
	}
	if c.cancelPlayback != nil {
		c.cancelPlayback()
	}
	if c.Model().State == StateRecording {
		c.config.Microphone.Stop()
	}
	c.config.Microphone.Release()
}
