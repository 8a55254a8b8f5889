// Package storage provides the backing-store plumbing for the service:
// PostgreSQL connection management with read replicas, and the Redis
// permission result cache.
//
// # Connection Management
//
// ConnectionManager holds one write connection to the primary and a set
// of read replicas selected round-robin:
//
//	cm, err := storage.NewConnectionManager(storage.ConnectionConfigFromStorage(cfg), log)
//	store := permissions.NewSQLStore(cm.Primary()).WithReader(cm.Replica())
//
// Replicas that fail their health check are dropped automatically when
// StartHealthCheckRoutine is running; reads fall back to the primary
// when no replica is healthy.
//
// # Permission Cache
//
// RedisClient caches resolved permission sets with a short TTL:
//
//	set, ok, err := rc.GetChannelPermissions(ctx, channelID, userID)
//	if !ok {
//		set, err = resolver.ChannelPermissions(ctx, channelID, userID)
//		_ = rc.SetChannelPermissions(ctx, channelID, userID, set)
//	}
//
// Mutations to roles and overwrites call the Invalidate* methods so
// stale grants never outlive the write by more than the in-flight
// requests.
package storage
