// Package feed pushes rendered map state to websocket viewers and serves
// the current frame, markers and summary over HTTP.
package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/livemap"
)

var ErrClosed = errors.New("feed closed")

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	defaultSendBuffer = 8
)

// Message is the snapshot sent to viewers after every render.
type Message struct {
	Type    string                     `json:"type"`
	At      time.Time                  `json:"at"`
	Mode    string                     `json:"mode"`
	Summary livemap.Summary            `json:"summary"`
	Markers *geojson.FeatureCollection `json:"markers"`
}

func newMessage(u livemap.Update) *Message {
	return &Message{
		Type:    "snapshot",
		At:      u.RenderedAt,
		Mode:    u.Mode.String(),
		Summary: u.Summary,
		Markers: FeatureCollection(u.Markers),
	}
}

type client struct {
	id   uuid.UUID
	send chan []byte
}

// Hub fans map updates out to websocket clients. New clients get the latest
// snapshot straight away; clients that fall behind are disconnected.
type Hub struct {
	log        *zap.Logger
	upgrader   websocket.Upgrader
	sendBuffer int

	mu      sync.Mutex
	clients map[*client]struct{}
	last    *Message
	lastRaw []byte
	closed  bool

	wg sync.WaitGroup
}

type HubOption func(*Hub)

func WithLogger(log *zap.Logger) HubOption {
	return func(h *Hub) { h.log = log.Named("feed") }
}

func WithSendBuffer(n int) HubOption {
	return func(h *Hub) { h.sendBuffer = max(n, 1) }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(*http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		log:        zap.NewNop(),
		sendBuffer: defaultSendBuffer,
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MapUpdated implements livemap.Observer. It never blocks on a client.
func (h *Hub) MapUpdated(u livemap.Update) {
	msg := newMessage(u)
	raw, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encoding snapshot", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last, h.lastRaw = msg, raw
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			h.log.Warn("dropping slow client", zap.Stringer("client", c.id))
			h.dropLocked(c)
		}
	}
}

// Last returns the most recent snapshot.
func (h *Hub) Last() (*Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.last != nil
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// register adds a client and reserves the two pump goroutines on wg so a
// concurrent Close waits for them.
func (h *Hub) register() (*client, error) {
	c := &client{id: uuid.New(), send: make(chan []byte, h.sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.wg.Add(2)
	if h.lastRaw != nil {
		c.send <- h.lastRaw
	}
	h.clients[c] = struct{}{}
	return c, nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked closes the client's queue once; its write pump then hangs up.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the request and streams snapshots until the client
// leaves or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c, err := h.register()
	if err != nil {
		_ = conn.Close()
		return
	}
	h.log.Info("viewer connected", zap.Stringer("client", c.id), zap.String("remote", r.RemoteAddr))

	go h.writePump(c, conn)
	go h.readPump(c, conn)
}

func (h *Hub) writePump(c *client, conn *websocket.Conn) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("write failed", zap.Stringer("client", c.id), zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump only exists to notice the client going away and to answer pings.
func (h *Hub) readPump(c *client, conn *websocket.Conn) {
	defer h.wg.Done()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			h.log.Info("viewer disconnected", zap.Stringer("client", c.id))
			return
		}
	}
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
