package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/AstromanXD/Astricord-sub001/pkg/permissions"
)

// RedisClient wraps the shared Redis connection and the permission
// result cache layered on top of it. Resolved permission sets are cached
// with a short TTL so hot channels don't hit Postgres on every message;
// role and overwrite mutations invalidate eagerly.
type RedisClient struct {
	client *redis.Client
	config Config
}

// NewRedisClient creates a new Redis client from config and verifies
// connectivity.
func NewRedisClient(config Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

func serverPermKey(serverID, userID string) string {
	return fmt.Sprintf("perm:server:%s:user:%s", serverID, userID)
}

func channelPermKey(channelID, userID string) string {
	return fmt.Sprintf("perm:channel:%s:user:%s", channelID, userID)
}

// GetServerPermissions returns a cached server-level permission set. The
// second return value reports whether the cache held an entry.
func (c *RedisClient) GetServerPermissions(ctx context.Context, serverID, userID string) (permissions.PermissionSet, bool, error) {
	return c.getSet(ctx, serverPermKey(serverID, userID))
}

// SetServerPermissions caches a resolved server-level permission set.
func (c *RedisClient) SetServerPermissions(ctx context.Context, serverID, userID string, set permissions.PermissionSet) error {
	return c.setSet(ctx, serverPermKey(serverID, userID), set, c.config.CacheTTL["server_permissions"])
}

// GetChannelPermissions returns a cached channel-level permission set.
func (c *RedisClient) GetChannelPermissions(ctx context.Context, channelID, userID string) (permissions.PermissionSet, bool, error) {
	return c.getSet(ctx, channelPermKey(channelID, userID))
}

// SetChannelPermissions caches a resolved channel-level permission set.
func (c *RedisClient) SetChannelPermissions(ctx context.Context, channelID, userID string, set permissions.PermissionSet) error {
	return c.setSet(ctx, channelPermKey(channelID, userID), set, c.config.CacheTTL["channel_permissions"])
}

// InvalidateUser drops every cached permission entry for a user in a
// server, used when their roles or a relevant overwrite changes.
func (c *RedisClient) InvalidateUser(ctx context.Context, serverID, userID string) error {
	if err := c.client.Del(ctx, serverPermKey(serverID, userID)).Err(); err != nil {
		return fmt.Errorf("delete server permission cache: %w", err)
	}
	return c.InvalidatePatterns(ctx, fmt.Sprintf("perm:channel:*:user:%s", userID))
}

// InvalidateChannel drops every cached permission entry for a channel,
// used when its overwrites change.
func (c *RedisClient) InvalidateChannel(ctx context.Context, channelID string) error {
	return c.InvalidatePatterns(ctx, fmt.Sprintf("perm:channel:%s:user:*", channelID))
}

// InvalidateServer drops all cached entries for a server, used when a
// role definition changes and per-user invalidation would have to walk
// the member list.
func (c *RedisClient) InvalidateServer(ctx context.Context, serverID string) error {
	return c.InvalidatePatterns(ctx,
		fmt.Sprintf("perm:server:%s:user:*", serverID),
		"perm:channel:*",
	)
}

// InvalidatePatterns removes keys matching patterns
func (c *RedisClient) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

func (c *RedisClient) getSet(ctx context.Context, key string) (permissions.PermissionSet, bool, error) {
	if !c.config.CacheEnabled {
		return 0, false, nil
	}

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("redis get failed: %w", err)
	}

	value, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		// Corrupt entry, drop it
		c.client.Del(ctx, key)
		return 0, false, fmt.Errorf("parse cached permission set: %w", err)
	}

	return permissions.PermissionSet(value), true, nil
}

func (c *RedisClient) setSet(ctx context.Context, key string, set permissions.PermissionSet, ttl time.Duration) error {
	if !c.config.CacheEnabled {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return c.client.Set(ctx, key, strconv.FormatUint(uint64(set), 10), ttl).Err()
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for health checks and
// the distributed rate limiter.
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetPoolStats returns connection pool statistics
func (c *RedisClient) GetPoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
