// Package websocket streams per-session pipeline events to subscribers.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voiceagent/core"
	"voiceagent/metrics"
	"voiceagent/protocol"
)

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultSendBufferSize    = 64
	writeTimeout             = 10 * time.Second
	readLimit                = 4096
)

type HubConfig struct {
	HeartbeatInterval time.Duration
	SendBufferSize    int
	// CheckOrigin is passed to the upgrader; nil accepts same-origin only.
	CheckOrigin func(r *http.Request) bool
	Metrics     *metrics.Metrics
	Logger      *core.Logger
}

// Hub fans events out to every WebSocket subscribed to the event's session.
// It implements core.EventObserver.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *core.Logger

	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Hub{
		config:   cfg,
		upgrader: websocket.Upgrader{CheckOrigin: cfg.CheckOrigin},
		logger:   cfg.Logger.With(map[string]interface{}{"component": "event_hub"}),
		subs:     make(map[string]map[*subscriber]struct{}),
	}
}

// Publish implements core.EventObserver.
func (h *Hub) Publish(packet *core.EventPacket) {
	if packet == nil || packet.SessionKey == "" {
		return
	}
	if h.Subscribers(packet.SessionKey) == 0 {
		return
	}
	payload, err := protocol.EventFromPacket(packet)
	if err != nil {
		h.logger.With(map[string]interface{}{"error": err}).Warn("failed to encode event, dropping")
		return
	}
	h.broadcast(packet.SessionKey, protocol.MsgEvent, payload)
}

// Subscribers returns the number of open connections for sessionKey.
func (h *Hub) Subscribers(sessionKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionKey])
}

// ServeSession upgrades the request and streams sessionKey's events until
// the peer disconnects or the hub closes.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionKey string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.With(map[string]interface{}{"error": err}).Debug("websocket upgrade failed")
		return
	}

	sub := &subscriber{
		conn:   conn,
		sendCh: make(chan []byte, h.config.SendBufferSize),
		done:   make(chan struct{}),
	}
	if !h.add(sessionKey, sub) {
		conn.Close()
		return
	}
	defer h.remove(sessionKey, sub)

	hello, _ := protocol.Encode(protocol.MsgHello, protocol.HelloPayload{SessionKey: sessionKey, ServerTime: time.Now().UTC()})
	sub.enqueue(hello)

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

func (h *Hub) add(key string, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[key] = set
	}
	set[sub] = struct{}{}
	if h.config.Metrics != nil {
		h.config.Metrics.StreamSubscribers.Inc()
	}
	return true
}

func (h *Hub) remove(key string, sub *subscriber) {
	sub.close()
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[key]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, key)
	}
	if h.config.Metrics != nil {
		h.config.Metrics.StreamSubscribers.Dec()
	}
}

func (h *Hub) broadcast(key string, msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		h.logger.With(map[string]interface{}{"error": err, "type": string(msgType)}).Warn("failed to marshal message, dropping")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[key] {
		s.enqueue(data)
	}
}

// readLoop drains client frames so control messages (close, pong) are
// processed; subscribers never send data.
func (h *Hub) readLoop(sub *subscriber) {
	sub.conn.SetReadLimit(readLimit)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.With(map[string]interface{}{"error": err}).Debug("subscriber connection lost")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()
	defer sub.conn.Close()

	for {
		select {
		case data := <-sub.sendCh:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.With(map[string]interface{}{"error": err}).Debug("write to subscriber failed")
				return
			}
		case <-ticker.C:
			hb, _ := protocol.Encode(protocol.MsgHeartbeat, protocol.HeartbeatPayload{Timestamp: time.Now().UTC()})
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, hb); err != nil {
				return
			}
		case <-sub.done:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// enqueue drops the oldest queued message when the buffer is full.
func (s *subscriber) enqueue(data []byte) {
	select {
	case s.sendCh <- data:
	default:
		select {
		case <-s.sendCh:
		default:
		}
		select {
		case s.sendCh <- data:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}
