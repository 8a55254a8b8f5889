package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AstromanXD/Astricord-sub001/pkg/auth"
	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
)

const (
	// writeTimeout bounds a single frame write to a slow peer.
	writeTimeout = 10 * time.Second

	// maxFrameSize caps inbound frames. Oversized frames break the read
	// loop, which tears the connection down through the normal close path.
	maxFrameSize = 64 * 1024
)

// IdentityVerifier extracts a verified identity from a handshake token.
// *auth.Verifier satisfies it.
type IdentityVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// GatewayOptions tunes the gateway. The zero value is usable.
type GatewayOptions struct {
	// SendBuffer is the per-connection outbound buffer size.
	SendBuffer int

	// CheckOrigin overrides the upgrader's origin policy. nil accepts
	// any origin, matching the public-gateway deployment behind its own
	// origin-enforcing proxy.
	CheckOrigin func(r *http.Request) bool
}

// Gateway accepts WebSocket connections and runs their lifecycle:
// identity extraction at handshake, command dispatch while open, and the
// cleanup path on close. It implements http.Handler.
type Gateway struct {
	registry *Registry
	presence *PresenceTracker
	verifier IdentityVerifier
	upgrader websocket.Upgrader
	log      *logrus.Logger
	metrics  *observability.Metrics
	opts     GatewayOptions

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewGateway creates a gateway over registry. verifier may be nil, in
// which case every connection is anonymous. metrics may be nil.
func NewGateway(registry *Registry, verifier IdentityVerifier, log *logrus.Logger, metrics *observability.Metrics, opts GatewayOptions) *Gateway {
	if log == nil {
		log = logrus.New()
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Gateway{
		registry: registry,
		presence: NewPresenceTracker(registry),
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log:     log,
		metrics: metrics,
		opts:    opts,
		conns:   make(map[*Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the connection until its
// transport closes. The optional "token" query parameter carries the
// identity token; absence or verification failure degrades to an
// anonymous connection, never a rejected handshake.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token := r.URL.Query().Get("token"); token != "" && g.verifier != nil {
		ident, err := g.verifier.Verify(token)
		if err != nil {
			g.log.WithError(err).Debug("handshake token rejected, continuing anonymous")
		} else {
			userID = ident.UserID
		}
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		g.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c := newConn(g.registry, g.presence, &wsTransport{ws: ws}, userID, g.opts.SendBuffer, g.log)
	g.track(c)
	defer g.untrack(c)

	if g.metrics != nil {
		g.metrics.GatewayConnectionsTotal.WithLabelValues(identifiedLabel(c)).Inc()
		g.metrics.GatewayConnectionsActive.Inc()
		defer g.metrics.GatewayConnectionsActive.Dec()
	}
	c.log.Info("connection open")

	go c.writeLoop()
	g.readLoop(c, ws)

	c.Close()
	c.log.Info("connection closed")
}

// readLoop parses inbound frames until the transport errors. Malformed
// frames are dropped without closing the connection or answering the
// peer.
func (g *Gateway) readLoop(c *Conn, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := decodeCommand(data)
		if err != nil {
			if g.metrics != nil {
				g.metrics.GatewayFramesDroppedTotal.Inc()
			}
			c.log.Debug("dropping malformed frame")
			continue
		}
		if g.metrics != nil {
			g.metrics.GatewayCommandsTotal.WithLabelValues(commandLabel(cmd)).Inc()
		}
		c.handleCommand(cmd)
	}
}

// Shutdown closes every live connection, running each one's full cleanup
// path (unsubscribe everything, presence leave).
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// ConnectionCount returns the number of live connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func (g *Gateway) track(c *Conn) {
	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) untrack(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
}

func identifiedLabel(c *Conn) string {
	if c.Identified() {
		return "identified"
	}
	return "anonymous"
}

func commandLabel(cmd Command) string {
	switch cmd.(type) {
	case SubscribeCommand:
		return "subscribe"
	case UnsubscribeCommand:
		return "unsubscribe"
	case BroadcastCommand:
		return "broadcast"
	default:
		return "unknown"
	}
}

// wsTransport adapts a gorilla websocket connection to the transport
// interface. Writes are serialized by the single writeLoop goroutine.
type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.ws.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}
