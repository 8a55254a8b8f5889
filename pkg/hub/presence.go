package hub

// PresenceTopic is the one reserved topic that carries global
// join/leave signals for identified connections.
const PresenceTopic = "presence"

// Presence event names.
const (
	EventPresenceJoin  = "PRESENCE_JOIN"
	EventPresenceLeave = "PRESENCE_LEAVE"
)

// presencePayload accompanies join/leave events. Consumers must treat
// presence as a multiset of connection-level signals keyed by
// connection_id, not a per-user boolean.
type presencePayload struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

// PresenceTracker is a policy layer over the registry, not separate
// state: it turns subscribe/unsubscribe on the reserved topic by
// identified connections into join/leave events. Anonymous connections
// subscribe and publish like any other but never trigger presence
// events, and no deduplication is performed across a user's
// simultaneous connections.
type PresenceTracker struct {
	registry *Registry
}

// NewPresenceTracker creates a tracker publishing through registry.
func NewPresenceTracker(registry *Registry) *PresenceTracker {
	return &PresenceTracker{registry: registry}
}

func (p *PresenceTracker) subscribed(c *Conn, topic string) {
	if topic != PresenceTopic || !c.Identified() {
		return
	}
	p.registry.Publish(PresenceTopic, EventPresenceJoin, presencePayload{
		UserID:       c.UserID(),
		ConnectionID: c.ID,
	})
}

func (p *PresenceTracker) unsubscribed(c *Conn, topic string) {
	if topic != PresenceTopic || !c.Identified() {
		return
	}
	p.registry.Publish(PresenceTopic, EventPresenceLeave, presencePayload{
		UserID:       c.UserID(),
		ConnectionID: c.ID,
	})
}
