// Package realtime is the WebSocket gateway and its pub/sub fan-out. Events
// travel through Redis so every backend replica delivers to its own
// connections; the hub keeps the per-replica subscriber registry.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codecampus/campus-core/pkg/logger"
)

const (
	broadcastPrefix = "ws:broadcast:"
	typingPrefix    = "ws:typing:"
	typingTTL       = 5 * time.Second
)

// Envelope is the wire format on the bus and to the client.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Hub bridges Redis pub/sub and local connections. Delivery is at-most-once;
// clients re-fetch on reconnect.
type Hub struct {
	rdb *redis.Client
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Conn]struct{}

	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewHub creates the hub.
func NewHub(rdb *redis.Client, log *slog.Logger) *Hub {
	return &Hub{
		rdb:  rdb,
		log:  log.With(logger.Scope("realtime.hub")),
		subs: make(map[string]map[*Conn]struct{}),
	}
}

// Start begins consuming the broadcast namespace.
func (h *Hub) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.stopped = make(chan struct{})

	pubsub := h.rdb.PSubscribe(ctx, broadcastPrefix+"*")
	go func() {
		defer close(h.stopped)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				channel := strings.TrimPrefix(msg.Channel, broadcastPrefix)
				h.deliver(channel, []byte(msg.Payload))
			}
		}
	}()
	h.log.Info("realtime hub started")
}

// Stop tears the pub/sub consumer down.
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.stopped
	h.log.Info("realtime hub stopped")
}

// Broadcast publishes an event to every subscriber of a channel across all
// replicas.
func (h *Hub) Broadcast(ctx context.Context, channel, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("broadcast payload marshal failed", logger.Error(err), slog.String("event", event))
		return
	}
	env, err := json.Marshal(Envelope{Type: event, Channel: channel, Data: data})
	if err != nil {
		h.log.Error("broadcast envelope marshal failed", logger.Error(err))
		return
	}
	if err := h.rdb.Publish(ctx, broadcastPrefix+channel, env).Err(); err != nil {
		h.log.Error("broadcast publish failed", logger.Error(err), slog.String("channel", channel))
	}
}

// PublishEntityEvent fans entity lifecycle events out to the course channel
// when the payload carries a course id. Payloads without one stay REST-only.
func (h *Hub) PublishEntityEvent(ctx context.Context, resource, action, id string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	var scoped struct {
		CourseID string `json:"courseId"`
	}
	if err := json.Unmarshal(data, &scoped); err != nil || scoped.CourseID == "" {
		return
	}
	h.Broadcast(ctx, "course:"+scoped.CourseID, resource+":"+action, payload)
}

// SetTyping records an ephemeral typing indicator.
func (h *Hub) SetTyping(ctx context.Context, channel, userID string) error {
	return h.rdb.Set(ctx, typingKey(channel, userID), "1", typingTTL).Err()
}

// ClearTyping drops a typing indicator before its TTL.
func (h *Hub) ClearTyping(ctx context.Context, channel, userID string) error {
	return h.rdb.Del(ctx, typingKey(channel, userID)).Err()
}

// TypingUsers enumerates who is currently typing on a channel.
func (h *Hub) TypingUsers(ctx context.Context, channel string) ([]string, error) {
	prefix := typingPrefix + channel + ":"
	var users []string
	iter := h.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		users = append(users, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func typingKey(channel, userID string) string {
	return typingPrefix + channel + ":" + userID
}

// attach registers a local subscriber.
func (h *Hub) attach(channel string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Conn]struct{})
	}
	h.subs[channel][c] = struct{}{}
}

// detach removes a local subscriber from one channel.
func (h *Hub) detach(channel string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[channel], c)
	if len(h.subs[channel]) == 0 {
		delete(h.subs, channel)
	}
}

// dropConn removes a connection from every channel.
func (h *Hub) dropConn(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, conns := range h.subs {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.subs, channel)
		}
	}
}

// deliver hands a raw envelope to every local subscriber of a channel.
func (h *Hub) deliver(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[channel] {
		c.enqueue(payload)
		eventsDelivered.Inc()
	}
}
