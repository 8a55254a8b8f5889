package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultSendBuffer is the per-connection outbound buffer. When it fills,
// further deliveries to that connection are dropped until the writer
// catches up.
const DefaultSendBuffer = 64

// transport is the socket half a connection writes to. The WebSocket
// implementation lives in gateway.go; tests substitute an in-memory one.
type transport interface {
	WriteMessage(data []byte) error
	Close() error
}

// Conn is one persistent connection's hub-side state: its optional
// identity, its local subscription set, and the outbound buffer the
// registry delivers into. A Conn is owned by the gateway that accepted
// it and is never persisted.
type Conn struct {
	ID     string
	userID string

	registry  *Registry
	presence  *PresenceTracker
	transport transport
	log       *logrus.Entry

	send   chan []byte
	closed chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	topics  map[string]struct{}
	closing bool
}

// newConn wires a connection into the registry. userID is "" for
// anonymous connections.
func newConn(registry *Registry, presence *PresenceTracker, t transport, userID string, sendBuffer int, log *logrus.Logger) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	id := uuid.NewString()
	return &Conn{
		ID:        id,
		userID:    userID,
		registry:  registry,
		presence:  presence,
		transport: t,
		log:       log.WithFields(logrus.Fields{"connection_id": id, "user_id": userID}),
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
		topics:    make(map[string]struct{}),
	}
}

// UserID returns the verified user identity, or "" for anonymous
// connections.
func (c *Conn) UserID() string { return c.userID }

// Identified reports whether the connection carries a verified identity.
func (c *Conn) Identified() bool { return c.userID != "" }

// deliver enqueues an already-serialized frame without blocking. It
// returns false when the connection is closed or its buffer is full; in
// both cases the frame is dropped and the caller moves on.
func (c *Conn) deliver(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writeLoop drains the send buffer onto the transport. A write error
// tears the connection down.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			if err := c.transport.WriteMessage(data); err != nil {
				c.log.WithError(err).Debug("write failed, closing connection")
				c.Close()
				return
			}
		}
	}
}

// handleCommand dispatches one decoded inbound command.
func (c *Conn) handleCommand(cmd Command) {
	switch cmd := cmd.(type) {
	case SubscribeCommand:
		c.subscribe(cmd.Topic)
	case UnsubscribeCommand:
		c.unsubscribe(cmd.Topic)
	case BroadcastCommand:
		// Forwarded with no authorization check; see the package comment.
		c.registry.Publish(cmd.Topic, cmd.Event, cmd.Payload)
	}
}

// subscribe adds the topic to the local set and the registry. The
// presence join fires only on the first subscribe to a topic, so
// duplicate subscribes stay idempotent end to end. A subscribe that
// races Close must not re-register the connection after Close has
// drained the topic set, so the closing flag is checked under the same
// lock Close snapshots under.
func (c *Conn) subscribe(topic string) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	_, already := c.topics[topic]
	c.topics[topic] = struct{}{}
	c.mu.Unlock()

	c.registry.Subscribe(topic, c)
	if !already {
		c.presence.subscribed(c, topic)
	}
}

// unsubscribe removes the topic from the local set and the registry,
// with the symmetric presence leave when the topic was actually held.
func (c *Conn) unsubscribe(topic string) {
	c.mu.Lock()
	_, held := c.topics[topic]
	delete(c.topics, topic)
	c.mu.Unlock()

	c.registry.Unsubscribe(topic, c)
	if held {
		c.presence.unsubscribed(c, topic)
	}
}

// Close transitions the connection to its terminal state. It is
// idempotent and safe to call from any point: transport error, explicit
// client close, or server shutdown. The full cleanup runs exactly once —
// every held subscription is removed and the presence leave is published
// exactly as if the peer had unsubscribed explicitly.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		c.closing = true
		held := make([]string, 0, len(c.topics))
		for topic := range c.topics {
			held = append(held, topic)
		}
		c.topics = make(map[string]struct{})
		c.mu.Unlock()

		for _, topic := range held {
			c.registry.Unsubscribe(topic, c)
			c.presence.unsubscribed(c, topic)
		}

		if err := c.transport.Close(); err != nil {
			c.log.WithError(err).Debug("transport close")
		}
	})
}
