package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

var ErrUnknownConnection = errors.New("no active stream for this connection id")

// DeliveryObserver counts fan-out outcomes per event name.
type DeliveryObserver interface {
	IncFanoutDelivered(event string)
	IncFanoutDropped(event string)
}

type HubOption func(*SSEHub)

func WithDeliveryObserver(o DeliveryObserver) HubOption {
	return func(h *SSEHub) { h.observer = o }
}

func WithOutboundBuffer(n int) HubOption {
	return func(h *SSEHub) {
		if n > 0 {
			h.outboundBuffer = n
		}
	}
}

func WithHeartbeat(d time.Duration) HubOption {
	return func(h *SSEHub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// SSEHub routes messages to the clients subscribed to a topic. Delivery never
// blocks: a client whose buffer is full misses the message.
type SSEHub struct {
	mu             sync.RWMutex
	logger         *logger.Logger
	subscriptions  map[string]map[*SSEClient]bool
	clients        map[uuid.UUID]*SSEClient
	observer       DeliveryObserver
	outboundBuffer int
	heartbeat      time.Duration
}

func NewSSEHub(log *logger.Logger, opts ...HubOption) *SSEHub {
	hub := &SSEHub{
		logger:         log.With("component", "SSEHub"),
		subscriptions:  make(map[string]map[*SSEClient]bool),
		clients:        make(map[uuid.UUID]*SSEClient),
		outboundBuffer: defaultOutboundBuffer,
		heartbeat:      15 * time.Second,
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// NewSSEClient registers a new connection for userID.
func (hub *SSEHub) NewSSEClient(userID uuid.UUID) *SSEClient {
	id := uuid.New()
	client := &SSEClient{
		ID:       id,
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan SSEMessage, hub.outboundBuffer),
		done:     make(chan struct{}),
		Logger:   hub.logger.With("connection_id", id),
	}
	hub.mu.Lock()
	hub.clients[id] = client
	hub.mu.Unlock()
	return client
}

func (hub *SSEHub) Client(connectionID uuid.UUID) (*SSEClient, bool) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	c, ok := hub.clients[connectionID]
	return c, ok
}

// Subscribe adds topic to an open connection. It reports whether the
// subscription is new.
func (hub *SSEHub) Subscribe(connectionID uuid.UUID, topic string) (bool, error) {
	client, ok := hub.Client(connectionID)
	if !ok {
		return false, ErrUnknownConnection
	}
	return hub.AddChannel(client, topic), nil
}

// Unsubscribe removes topic from an open connection. It reports whether the
// connection was subscribed.
func (hub *SSEHub) Unsubscribe(connectionID uuid.UUID, topic string) (bool, error) {
	client, ok := hub.Client(connectionID)
	if !ok {
		return false, ErrUnknownConnection
	}
	return hub.RemoveChannel(client, topic), nil
}

// AddChannel subscribes client to channel. It returns false when the client
// is already subscribed, or has been closed or unregistered.
func (hub *SSEHub) AddChannel(client *SSEClient, channel string) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" || client.closed || hub.clients[client.ID] != client || client.Channels[channel] {
		return false
	}
	client.Channels[channel] = true

	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true

	hub.logger.Debug("SSE client subscribed", "connection_id", client.ID, "channel", channel)
	return true
}

// HasChannel reports whether client is currently subscribed to channel.
func (hub *SSEHub) HasChannel(client *SSEClient, channel string) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return client.Channels[strings.TrimSpace(channel)]
}

func (hub *SSEHub) RemoveChannel(client *SSEClient, channel string) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" || !client.Channels[channel] {
		return false
	}
	delete(client.Channels, channel)
	hub.dropSubscription(client, channel)
	hub.logger.Debug("SSE client unsubscribed", "connection_id", client.ID, "channel", channel)
	return true
}

// UnsubscribeAll removes topic from every connection, returning the clients
// that were subscribed.
func (hub *SSEHub) UnsubscribeAll(channel string) []*SSEClient {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	subMap := hub.subscriptions[channel]
	out := make([]*SSEClient, 0, len(subMap))
	for c := range subMap {
		delete(c.Channels, channel)
		out = append(out, c)
	}
	delete(hub.subscriptions, channel)
	return out
}

// UnsubscribeUser removes topic from every connection owned by userID.
func (hub *SSEHub) UnsubscribeUser(userID uuid.UUID, channel string) []*SSEClient {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	var out []*SSEClient
	for c := range hub.subscriptions[channel] {
		if c.UserID != userID {
			continue
		}
		delete(c.Channels, channel)
		out = append(out, c)
	}
	for _, c := range out {
		hub.dropSubscription(c, channel)
	}
	return out
}

func (hub *SSEHub) dropSubscription(client *SSEClient, channel string) {
	if subMap, ok := hub.subscriptions[channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(hub.subscriptions, channel)
		}
	}
}

// Broadcast delivers msg to every subscriber of msg.Channel and returns how
// many received it.
func (hub *SSEHub) Broadcast(msg SSEMessage) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if msg.Channel == "" {
		return 0
	}
	delivered := 0
	for c := range hub.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
			delivered++
			if hub.observer != nil {
				hub.observer.IncFanoutDelivered(string(msg.Event))
			}
		default:
			if hub.observer != nil {
				hub.observer.IncFanoutDropped(string(msg.Event))
			}
			hub.logger.Warn("Dropping SSE message; outbound buffer full", "connection_id", c.ID, "event", msg.Event)
		}
	}
	return delivered
}

func (hub *SSEHub) Publish(channel string, event SSEEvent, data any) int {
	return hub.Broadcast(SSEMessage{Channel: channel, Event: event, Data: data})
}

func (hub *SSEHub) SubscriberCount(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

func (hub *SSEHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// ServeHTTP streams client's messages until the request ends or the client is
// closed. The first frame is Connected carrying the connection id.
func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	hello := SSEMessage{
		Channel: UserTopic(client.UserID),
		Event:   SSEEventConnected,
		Data:    map[string]string{"connection_id": client.ID.String()},
	}
	if err := writeFrame(w, hello); err != nil {
		hub.logger.Warn("Failed to write SSE hello", "connection_id", client.ID, "error", err)
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "connection_id", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			if err := writeFrame(w, msg); err != nil {
				hub.logger.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, msg SSEMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
	return err
}

// CloseClient unregisters client and returns the topics it was subscribed to.
// It is safe to call more than once.
func (hub *SSEHub) CloseClient(client *SSEClient) []string {
	var topics []string
	client.closeOnce.Do(func() {
		close(client.done)
		hub.mu.Lock()
		client.closed = true
		topics = client.topics()
		for _, t := range topics {
			hub.dropSubscription(client, t)
		}
		client.Channels = make(map[string]bool)
		delete(hub.clients, client.ID)
		close(client.Outbound)
		hub.mu.Unlock()
		hub.logger.Debug("SSE client closed", "connection_id", client.ID, "topics", len(topics))
	})
	return topics
}
