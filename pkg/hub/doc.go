// Package hub implements the Astricord realtime fan-out hub: a
// process-local topic registry, WebSocket connection lifecycle, and
// presence tracking.
//
// # Overview
//
// Connections subscribe to named topics and receive every event published
// to them. Topics have no stored representation: one exists only while at
// least one connection is subscribed, and its registry entry is removed
// the instant its subscriber set becomes empty.
//
//	registry := hub.NewRegistry(log, metrics)
//	gateway := hub.NewGateway(registry, verifier, log, metrics)
//	router.Handle("/v1/gateway", gateway)
//
//	// route layer, after a successful mutation:
//	registry.Publish("messages:"+channelID, "MESSAGE_CREATE", msg)
//
// # Delivery guarantees
//
// Events published to the same topic reach a given subscriber in publish
// order. No order is promised across topics. Delivery is best-effort: a
// subscriber whose send buffer is full has that event dropped rather than
// stalling the registry, and a connection found closed at delivery time is
// skipped (its cleanup is the connection lifecycle's job, not the
// publisher's).
//
// # Connection lifecycle
//
// A connection moves Connecting -> Open -> Closed. Identity is extracted
// from an optional token at handshake; an absent or invalid token means
// the connection is anonymous, never a handshake failure. While open, the
// peer sends JSON command frames (subscribe, unsubscribe, broadcast);
// anything malformed is silently discarded. Close is idempotent and always
// runs the full cleanup exactly once: every subscription is removed and,
// for identified connections subscribed to the presence topic, a leave
// event is published as if the peer had unsubscribed explicitly.
//
// # Presence
//
// The reserved topic "presence" carries PRESENCE_JOIN / PRESENCE_LEAVE
// events for identified connections. Presence is a multiset of
// connection-level signals: a user with two connections produces two joins
// and two leaves, and no deduplication is performed here.
//
// # Broadcast is unauthenticated
//
// The client-originated broadcast command forwards to Publish with no
// authorization tying the publisher to the topic; any connected client can
// publish any event to any topic name. This mirrors the observed behavior
// of the platform and is deliberate; do not add a permission check here
// without agreeing the contract change with the client teams.
package hub
