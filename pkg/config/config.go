package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AstromanXD/Astricord-sub001/pkg/observability"
	"github.com/AstromanXD/Astricord-sub001/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Gateway configuration
	Gateway GatewayConfig `yaml:"gateway"`

	// Janitor configuration
	Janitor JanitorConfig `yaml:"janitor"`

	// Storage configuration
	Storage storage.Config `yaml:"-"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds identity token settings.
type AuthConfig struct {
	// TokenSecret signs and verifies identity tokens. Required.
	TokenSecret string `yaml:"token_secret"`

	// TokenCacheSize bounds the verified-token LRU.
	TokenCacheSize int `yaml:"token_cache_size"`
}

// GatewayConfig holds websocket gateway settings.
type GatewayConfig struct {
	// SendBuffer is the per-connection outbound frame buffer.
	SendBuffer int `yaml:"send_buffer"`

	// AllowedOrigins restricts handshake origins. Empty allows any.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// JanitorConfig holds background maintenance settings.
type JanitorConfig struct {
	// TimeoutSweepSchedule is a cron expression for expired-timeout
	// sweeps.
	TimeoutSweepSchedule string `yaml:"timeout_sweep_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables. When
// ASTRICORD_CONFIG_FILE is set, the YAML file is applied first and
// environment variables override it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Gateway:       loadGatewayConfig(),
		Janitor:       loadJanitorConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if path := getEnv("ASTRICORD_CONFIG_FILE", ""); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg.mergeFile(fileCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile parses a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// mergeFile overlays non-zero file values under the env-derived config.
// Environment variables that were explicitly set win; file values fill
// the rest.
func (c *Config) mergeFile(file *Config) {
	merge := func(envKey string, dst *string, src string) {
		if os.Getenv(envKey) == "" && src != "" {
			*dst = src
		}
	}
	mergeDur := func(envKey string, dst *time.Duration, src time.Duration) {
		if os.Getenv(envKey) == "" && src != 0 {
			*dst = src
		}
	}
	mergeInt := func(envKey string, dst *int, src int) {
		if os.Getenv(envKey) == "" && src != 0 {
			*dst = src
		}
	}

	merge("ASTRICORD_HOST", &c.Server.Host, file.Server.Host)
	merge("ASTRICORD_PORT", &c.Server.Port, file.Server.Port)
	merge("ASTRICORD_HEALTH_PORT", &c.Server.HealthPort, file.Server.HealthPort)
	mergeDur("ASTRICORD_READ_TIMEOUT", &c.Server.ReadTimeout, file.Server.ReadTimeout)
	mergeDur("ASTRICORD_WRITE_TIMEOUT", &c.Server.WriteTimeout, file.Server.WriteTimeout)
	mergeDur("ASTRICORD_IDLE_TIMEOUT", &c.Server.IdleTimeout, file.Server.IdleTimeout)
	mergeDur("ASTRICORD_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout, file.Server.ShutdownTimeout)

	merge("ASTRICORD_TOKEN_SECRET", &c.Auth.TokenSecret, file.Auth.TokenSecret)
	mergeInt("ASTRICORD_TOKEN_CACHE_SIZE", &c.Auth.TokenCacheSize, file.Auth.TokenCacheSize)

	mergeInt("ASTRICORD_GATEWAY_SEND_BUFFER", &c.Gateway.SendBuffer, file.Gateway.SendBuffer)
	if os.Getenv("ASTRICORD_GATEWAY_ALLOWED_ORIGINS") == "" && len(file.Gateway.AllowedOrigins) > 0 {
		c.Gateway.AllowedOrigins = file.Gateway.AllowedOrigins
	}

	merge("ASTRICORD_TIMEOUT_SWEEP_SCHEDULE", &c.Janitor.TimeoutSweepSchedule, file.Janitor.TimeoutSweepSchedule)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ASTRICORD_HOST", "0.0.0.0"),
		Port:            getEnv("ASTRICORD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ASTRICORD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ASTRICORD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ASTRICORD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ASTRICORD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ASTRICORD_HEALTH_PORT", "9090"),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret:    getEnv("ASTRICORD_TOKEN_SECRET", ""),
		TokenCacheSize: getEnvInt("ASTRICORD_TOKEN_CACHE_SIZE", 0),
	}
}

// loadGatewayConfig loads gateway configuration from environment
func loadGatewayConfig() GatewayConfig {
	cfg := GatewayConfig{
		SendBuffer: getEnvInt("ASTRICORD_GATEWAY_SEND_BUFFER", 0),
	}
	if origins := getEnv("ASTRICORD_GATEWAY_ALLOWED_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}
	return cfg
}

// loadJanitorConfig loads janitor configuration from environment
func loadJanitorConfig() JanitorConfig {
	return JanitorConfig{
		TimeoutSweepSchedule: getEnv("ASTRICORD_TIMEOUT_SWEEP_SCHEDULE", "@every 1m"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("ASTRICORD_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("ASTRICORD_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("ASTRICORD_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("ASTRICORD_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("ASTRICORD_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("ASTRICORD_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("ASTRICORD_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("ASTRICORD_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("ASTRICORD_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("ASTRICORD_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if cacheEnabled := getEnv("ASTRICORD_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if ttl := getEnvDuration("ASTRICORD_PERMISSION_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL["server_permissions"] = ttl
		cfg.CacheTTL["channel_permissions"] = ttl
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("ASTRICORD_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ASTRICORD_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ASTRICORD_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ASTRICORD_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ASTRICORD_OTEL_SERVICE_NAME", "astricord"),
		OTelServiceVersion: getEnv("ASTRICORD_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ASTRICORD_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Janitor.TimeoutSweepSchedule == "" {
		return fmt.Errorf("timeout sweep schedule is required")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
