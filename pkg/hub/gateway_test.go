package hub

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AstromanXD/Astricord-sub001/pkg/auth"
)

func newTestGateway(t *testing.T) (*Gateway, *Registry, *auth.Verifier, *httptest.Server) {
	t.Helper()
	verifier, err := auth.NewVerifier([]byte("gateway-test-secret"), 16)
	require.NoError(t, err)

	registry := newTestRegistry()
	gateway := NewGateway(registry, verifier, testLogger(), nil, GatewayOptions{})
	server := httptest.NewServer(gateway)
	t.Cleanup(server.Close)
	return gateway, registry, verifier, server
}

func dialGateway(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWireFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func awaitSubscribers(t *testing.T, r *Registry, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Subscribers(topic) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayPublishReachesSubscriber(t *testing.T) {
	_, registry, _, server := newTestGateway(t)
	ws := dialGateway(t, server, "")

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "subscribe", "channel": "messages:chan1"}))
	awaitSubscribers(t, registry, "messages:chan1", 1)

	registry.Publish("messages:chan1", "MESSAGE_CREATE", map[string]string{"id": "m1"})

	f := readWireFrame(t, ws)
	assert.Equal(t, "MESSAGE_CREATE", f.Event)
	assert.Equal(t, map[string]interface{}{"id": "m1"}, f.Payload)
}

func TestGatewayBroadcastBetweenClients(t *testing.T) {
	_, registry, _, server := newTestGateway(t)
	sender := dialGateway(t, server, "")
	receiver := dialGateway(t, server, "")

	require.NoError(t, receiver.WriteJSON(map[string]string{"type": "subscribe", "channel": "room:1"}))
	awaitSubscribers(t, registry, "room:1", 1)

	require.NoError(t, sender.WriteJSON(map[string]interface{}{
		"type":    "broadcast",
		"channel": "room:1",
		"event":   "TYPING",
	}))

	f := readWireFrame(t, receiver)
	assert.Equal(t, "TYPING", f.Event)
	assert.Equal(t, map[string]interface{}{}, f.Payload)
}

func TestGatewayMalformedFramesDoNotCloseConnection(t *testing.T) {
	_, registry, _, server := newTestGateway(t)
	ws := dialGateway(t, server, "")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"nope","channel":"c"}`)))

	// The connection is still alive and dispatching.
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "subscribe", "channel": "still:alive"}))
	awaitSubscribers(t, registry, "still:alive", 1)

	registry.Publish("still:alive", "E", nil)
	f := readWireFrame(t, ws)
	assert.Equal(t, "E", f.Event)
}

func TestGatewayIdentifiedHandshake(t *testing.T) {
	_, registry, verifier, server := newTestGateway(t)

	token, err := verifier.Issue("user-7", time.Hour)
	require.NoError(t, err)

	observer := dialGateway(t, server, "")
	require.NoError(t, observer.WriteJSON(map[string]string{"type": "subscribe", "channel": PresenceTopic}))
	awaitSubscribers(t, registry, PresenceTopic, 1)

	identified := dialGateway(t, server, token)
	require.NoError(t, identified.WriteJSON(map[string]string{"type": "subscribe", "channel": PresenceTopic}))

	f := readWireFrame(t, observer)
	assert.Equal(t, EventPresenceJoin, f.Event)
	payload := f.Payload.(map[string]interface{})
	assert.Equal(t, "user-7", payload["user_id"])

	// Dropping the socket, not unsubscribing, still emits the leave.
	identified.Close()
	f = readWireFrame(t, observer)
	assert.Equal(t, EventPresenceLeave, f.Event)
}

func TestGatewayInvalidTokenDegradesToAnonymous(t *testing.T) {
	gateway, registry, _, server := newTestGateway(t)

	observer := dialGateway(t, server, "")
	require.NoError(t, observer.WriteJSON(map[string]string{"type": "subscribe", "channel": PresenceTopic}))
	awaitSubscribers(t, registry, PresenceTopic, 1)

	// Handshake succeeds despite the garbage token.
	anon := dialGateway(t, server, "not-a-jwt")
	require.NoError(t, anon.WriteJSON(map[string]string{"type": "subscribe", "channel": PresenceTopic}))
	awaitSubscribers(t, registry, PresenceTopic, 2)

	// No join was emitted for the anonymous connection.
	registry.Publish(PresenceTopic, "MARKER", nil)
	f := readWireFrame(t, observer)
	assert.Equal(t, "MARKER", f.Event)

	assert.Equal(t, 2, gateway.ConnectionCount())
}

func TestGatewayShutdownClosesConnections(t *testing.T) {
	gateway, registry, _, server := newTestGateway(t)

	ws := dialGateway(t, server, "")
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "subscribe", "channel": "messages:chan1"}))
	awaitSubscribers(t, registry, "messages:chan1", 1)

	gateway.Shutdown()

	require.Eventually(t, func() bool {
		return !registry.HasTopic("messages:chan1")
	}, 2*time.Second, 10*time.Millisecond)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err, "server-side close must surface to the client")
}
