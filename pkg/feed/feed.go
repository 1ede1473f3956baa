// Package feed streams live proxy activity to websocket subscribers:
// bus raises on the events channel, delivered line traffic on the mud
// and client channels, and lifecycle notices on the system channel.
//
// Delivery is fire-and-forget. Publishers hand payloads to a bounded
// queue and never block, so a slow websocket reader can stall neither
// the dispatcher nor the network loops.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Subscription channels.
const (
	ChannelEvents = "events"
	ChannelMud    = "mud"
	ChannelClient = "client"
	ChannelSystem = "system"
)

const (
	defaultWriteTimeout = 5 * time.Second
	publishBuffer       = 256
)

// ValidChannel reports whether name is a subscribable channel.
func ValidChannel(name string) bool {
	switch name {
	case ChannelEvents, ChannelMud, ChannelClient, ChannelSystem:
		return true
	}
	return false
}

// Hub manages websocket connections and channel subscriptions and fans
// published payloads out to subscribers.
type Hub struct {
	log *slog.Logger

	// Active connections: connection id → *conn
	connections map[string]*conn
	mu          sync.RWMutex

	// Channel subscriptions: channel → set of connection ids
	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	// Write timeout for websocket sends
	writeTimeout time.Duration

	pub     chan published
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type published struct {
	channel string
	payload any
}

// conn is a single websocket client.
//
// subscriptions is accessed without a lock. All reads and writes happen
// on the goroutine that owns the connection (HandleConnection's read
// loop and its deferred cleanup).
type conn struct {
	id            string
	ws            *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewHub creates a hub. writeTimeout <= 0 selects the default.
func NewHub(log *slog.Logger, writeTimeout time.Duration) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Hub{
		log:          log.With("component", "feed"),
		connections:  make(map[string]*conn),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
		pub:          make(chan published, publishBuffer),
		done:         make(chan struct{}),
	}
}

// Start runs the fan-out pump until ctx ends or Stop is called.
func (h *Hub) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.pump(ctx)
}

// Stop ends the pump and waits for it. Connections still open keep
// their read loops; only publishing stops.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
	h.wg.Wait()
}

// Publish queues a payload for the channel's subscribers. It never
// blocks; when the queue is full the payload is dropped and false is
// returned.
func (h *Hub) Publish(channel string, payload any) bool {
	select {
	case h.pub <- published{channel: channel, payload: payload}:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Dropped returns how many payloads were discarded on a full queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) pump(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case msg := <-h.pub:
			data, err := json.Marshal(msg.payload)
			if err != nil {
				h.log.Warn("feed payload not marshalable", "channel", msg.channel, "error", err)
				continue
			}
			h.Broadcast(msg.channel, data)
		}
	}
}

// HandleConnection manages the lifecycle of a single websocket
// connection. Called by the HTTP handler after upgrade. Blocks until
// the connection closes.
func (h *Hub) HandleConnection(parentCtx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &conn{
		id:            uuid.New().String(),
		ws:            ws,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.register(c)
	defer h.unregister(c)

	h.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": c.id,
	})

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("invalid feed message", "connection_id", c.id, "error", err)
			continue
		}

		h.handleClientMessage(c, &msg)
	}
}

// Broadcast sends data to every connection subscribed to channel.
func (h *Hub) Broadcast(channel string, data []byte) {
	h.channelMu.RLock()
	subs, ok := h.channels[channel]
	if !ok {
		h.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	h.channelMu.RUnlock()

	// Snapshot connection pointers, then release before sending so a
	// slow write (up to writeTimeout per connection) cannot stall
	// register/unregister.
	h.mu.RLock()
	conns := make([]*conn, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := h.sendRaw(c, data); err != nil {
			h.log.Warn("feed send failed", "connection_id", c.id, "error", err)
		}
	}
}

// ActiveConnections returns the count of open websocket connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// subscriberCount returns the number of subscribers for a channel.
// Unexported, used by tests to poll instead of sleeping.
func (h *Hub) subscriberCount(channel string) int {
	h.channelMu.RLock()
	defer h.channelMu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) handleClientMessage(c *conn, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if !ValidChannel(msg.Channel) {
			h.sendJSON(c, map[string]string{
				"type":    "error",
				"message": "unknown channel",
				"channel": msg.Channel,
			})
			return
		}
		h.subscribe(c, msg.Channel)
		h.sendJSON(c, map[string]string{
			"type":    "subscription.confirmed",
			"channel": msg.Channel,
		})

	case "unsubscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{
				"type":    "error",
				"message": "channel is required for unsubscribe",
			})
			return
		}
		h.unsubscribe(c, msg.Channel)

	case "ping":
		h.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (h *Hub) subscribe(c *conn, channel string) {
	h.channelMu.Lock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[string]bool)
	}
	h.channels[channel][c.id] = true
	h.channelMu.Unlock()

	c.subscriptions[channel] = true
}

func (h *Hub) unsubscribe(c *conn, channel string) {
	h.channelMu.Lock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.id] = c
}

func (h *Hub) unregister(c *conn) {
	for ch := range c.subscriptions {
		h.unsubscribe(c, ch)
	}

	h.mu.Lock()
	delete(h.connections, c.id)
	h.mu.Unlock()

	c.cancel()
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) sendJSON(c *conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("feed message not marshalable", "connection_id", c.id, "error", err)
		return
	}
	if err := h.sendRaw(c, data); err != nil {
		h.log.Warn("feed send failed", "connection_id", c.id, "error", err)
	}
}

func (h *Hub) sendRaw(c *conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, h.writeTimeout)
	defer cancel()
	return c.ws.Write(writeCtx, websocket.MessageText, data)
}
