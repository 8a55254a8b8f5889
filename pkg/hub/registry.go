package hub

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
)

// Frame is the outbound wire shape delivered verbatim to every live
// subscriber of a topic.
type Frame struct {
	Event   interface{} `json:"event"`
	Payload interface{} `json:"payload"`
}

// Registry maps topic names to their live subscriber sets. It is the one
// shared piece of hub state; all access goes through its mutex, so no
// operation ever observes a torn subscriber set. The critical sections
// never block: delivery uses non-blocking sends into each connection's
// buffer.
type Registry struct {
	mu     sync.Mutex
	topics map[string]map[*Conn]struct{}

	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(log *logrus.Logger, metrics *observability.Metrics) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		topics:  make(map[string]map[*Conn]struct{}),
		log:     log,
		metrics: metrics,
	}
}

// Subscribe adds the connection to the topic's subscriber set, creating
// the topic entry if absent. Subscribing twice is a no-op.
func (r *Registry) Subscribe(topic string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		set = make(map[*Conn]struct{})
		r.topics[topic] = set
	}
	set[c] = struct{}{}

	if r.metrics != nil {
		r.metrics.HubTopicsActive.Set(float64(len(r.topics)))
	}
}

// Unsubscribe removes the connection from the topic's subscriber set. The
// topic entry is removed the moment its set becomes empty; no empty sets
// are retained.
func (r *Registry) Unsubscribe(topic string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.topics, topic)
	}

	if r.metrics != nil {
		r.metrics.HubTopicsActive.Set(float64(len(r.topics)))
	}
}

// Publish serializes {event, payload} once and hands the frame to every
// current subscriber of the topic. A topic with no subscribers is a
// no-op. Connections found closed are skipped, not reaped, and a
// subscriber with a full buffer has this event dropped; neither case
// stalls the other subscribers. Holding the mutex across the delivery
// loop is what serializes same-topic publishes per subscriber.
func (r *Registry) Publish(topic string, event, payload interface{}) {
	data, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		r.log.WithError(err).WithField("topic", topic).Warn("dropping unserializable event")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		return
	}
	if r.metrics != nil {
		r.metrics.HubEventsPublishedTotal.Inc()
	}
	for c := range set {
		if c.deliver(data) {
			if r.metrics != nil {
				r.metrics.HubDeliveriesTotal.Inc()
			}
		} else if r.metrics != nil {
			r.metrics.HubDeliveriesDroppedTotal.Inc()
		}
	}
}

// Subscribers returns the current size of a topic's subscriber set.
func (r *Registry) Subscribers(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic])
}

// HasTopic reports whether the topic currently has a registry entry.
func (r *Registry) HasTopic(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.topics[topic]
	return ok
}

// TopicCount returns the number of live topics.
func (r *Registry) TopicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}
