// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. An optional YAML file, pointed to by
// ASTRICORD_CONFIG_FILE, fills in values that the environment leaves unset;
// environment variables always win. Watch re-reads the file on change for
// settings that can be applied at runtime.
//
// # Configuration Structure
//
// Server settings:
//
//	ASTRICORD_HOST="0.0.0.0"
//	ASTRICORD_PORT="8080"
//	ASTRICORD_HEALTH_PORT="9090"
//	ASTRICORD_READ_TIMEOUT="15s"
//	ASTRICORD_WRITE_TIMEOUT="15s"
//
// Auth settings:
//
//	ASTRICORD_TOKEN_SECRET="..."   # required
//	ASTRICORD_TOKEN_CACHE_SIZE="1024"
//
// Gateway settings:
//
//	ASTRICORD_GATEWAY_SEND_BUFFER="256"
//	ASTRICORD_GATEWAY_ALLOWED_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Janitor settings:
//
//	ASTRICORD_TIMEOUT_SWEEP_SCHEDULE="@every 1m"
//
// Storage settings:
//
//	ASTRICORD_POSTGRES_URL="postgres://localhost/astricord"
//	ASTRICORD_POSTGRES_REPLICA_URLS="postgres://replica1,postgres://replica2"
//	ASTRICORD_POSTGRES_MAX_CONNS="20"
//	ASTRICORD_REDIS_URL="redis://localhost:6379"
//	ASTRICORD_REDIS_POOL_SIZE="10"
//	ASTRICORD_CACHE_ENABLED="true"
//	ASTRICORD_PERMISSION_CACHE_TTL="30s"
//
// Observability settings:
//
//	ASTRICORD_LOG_LEVEL="info"  # debug, info, warn, error
//	ASTRICORD_METRICS_ENABLED="true"
//	ASTRICORD_OTEL_ENABLED="true"
//	ASTRICORD_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// Watch the config file for runtime changes:
//
//	go config.Watch(ctx, path, log, func(cfg *config.Config) {
//		log.SetLevel(logrusLevel(cfg.Observability.LogLevel))
//	})
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
