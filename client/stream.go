package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voiceagent/core"
	"voiceagent/events/turn"
	"voiceagent/protocol"
)

const (
	streamRetryInterval = 2 * time.Second
	stalePollInterval   = 250 * time.Millisecond
)

// StageStream follows a session's event stream and turns server stage
// reports into StageProgress events.
type StageStream struct {
	baseURL  string
	dispatch func(Event)
	logger   *core.Logger
	dialer   *websocket.Dialer
}

// NewStageStream accepts the agent's http(s) base URL.
func NewStageStream(baseURL string, dispatch func(Event), logger *core.Logger) (*StageStream, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("stagestream: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("stagestream: base url %q must be http or https", baseURL)
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &StageStream{
		baseURL:  u.String(),
		dispatch: dispatch,
		logger:   logger.With(map[string]interface{}{"component": "stage_stream"}),
		dialer:   websocket.DefaultDialer,
	}, nil
}

// Follow keeps a connection open for whatever current returns, reconnecting
// when the connection drops or the session key changes.
func (s *StageStream) Follow(ctx context.Context, current func() string) {
	for ctx.Err() == nil {
		key := current()
		if err := s.Run(ctx, key, func() bool { return current() != key }); err != nil && ctx.Err() == nil {
			s.logger.With(map[string]interface{}{"error": err}).Debug("stage stream disconnected")
			select {
			case <-ctx.Done():
			case <-time.After(streamRetryInterval):
			}
		}
	}
}

// Run streams sessionKey's events until ctx ends, the connection drops or
// stale reports true. stale is polled while the connection is idle, so a
// session switch is picked up without waiting for traffic.
func (s *StageStream) Run(ctx context.Context, sessionKey string, stale func() bool) error {
	endpoint := s.baseURL + "/agent/events/" + url.PathEscape(sessionKey)
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("stagestream: dial %q: %w", endpoint, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var switched atomic.Bool
	if stale != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(stalePollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if stale() {
						switched.Store(true)
						conn.Close()
						return
					}
				}
			}
		}()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || switched.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		s.handle(data)
		if stale != nil && stale() {
			return nil
		}
	}
}

func (s *StageStream) handle(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		s.logger.With(map[string]interface{}{"error": err}).Warn("invalid message on stage stream")
		return
	}
	if env.Type != protocol.MsgEvent {
		return
	}
	ev, err := protocol.PayloadAs[protocol.EventPayload](env.Payload)
	if err != nil || ev.EventID != (&turn.TurnStageEvent{}).GetId() {
		return
	}
	stage, err := protocol.PayloadAs[turn.TurnStageEvent](ev.Data)
	if err != nil {
		return
	}
	s.dispatch(StageProgress{TurnID: stage.TurnID, Stage: stage.State})
}
