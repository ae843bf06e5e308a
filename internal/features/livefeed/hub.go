// Package livefeed fans published updates out to websocket subscribers.
package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/infra/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultPingInterval = 30 * time.Second
	DefaultSendBuffer   = 64

	writeWait      = 10 * time.Second
	maxInboundSize = 4096
)

// Message is the envelope written to subscribers.
type Message struct {
	Topic string          `json:"topic"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	topic string
	frame []byte
}

type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan outbound

	clients map[*client]struct{}
	// last frame per topic, sent to new subscribers
	last map[string][]byte

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	sendBuffer   int
}

type Option func(*Hub)

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

func WithSendBuffer(n int) Option {
	return func(h *Hub) { h.sendBuffer = n }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		register:     make(chan *client),
		unregister:   make(chan *client),
		broadcast:    make(chan outbound, 256),
		clients:      make(map[*client]struct{}),
		last:         make(map[string][]byte),
		pingInterval: DefaultPingInterval,
		sendBuffer:   DefaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the subscriber set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return ctx.Err()

		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			h.last[msg.topic] = msg.frame
			for c := range h.clients {
				if c.wants(msg.topic) {
					h.deliver(c, msg.frame)
				}
			}
		}
	}
}

// add subscribes c and replays the last frame of each topic it wants.
func (h *Hub) add(c *client) {
	h.clients[c] = struct{}{}
	metrics.FeedClients.Set(float64(len(h.clients)))
	for topic, frame := range h.last {
		if !c.wants(topic) {
			continue
		}
		h.deliver(c, frame)
		if _, ok := h.clients[c]; !ok {
			return
		}
	}
}

// deliver never blocks: a client whose buffer is full is disconnected.
func (h *Hub) deliver(c *client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.LogWarn("Dropping slow feed client", zap.String("remote", c.remote))
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	metrics.FeedClients.Set(float64(len(h.clients)))
}

// Publish queues payload for every subscriber of topic. It does not block; when
// the hub is backed up the update is discarded.
func (h *Hub) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.LogError("Failed to encode feed payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	frame, err := json.Marshal(Message{Topic: topic, TS: time.Now().UnixMilli(), Data: data})
	if err != nil {
		log.LogError("Failed to encode feed message", zap.String("topic", topic), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{topic: topic, frame: frame}:
	default:
		log.LogWarn("Feed hub backed up, update discarded", zap.String("topic", topic))
	}
}

// ServeWS upgrades the request and subscribes it to the comma-separated
// ?topics= list, or to every topic when the list is empty.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.LogWarn("Websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		topics: parseTopics(r.URL.Query().Get("topics")),
		remote: r.RemoteAddr,
	}

	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	}
	log.LogDebug("Feed client connected", zap.String("remote", c.remote), zap.Strings("topics", c.topicList()))

	go c.writePump()
	go c.readPump()
}

func parseTopics(raw string) map[string]struct{} {
	topics := make(map[string]struct{})
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			topics[t] = struct{}{}
		}
	}
	return topics
}
