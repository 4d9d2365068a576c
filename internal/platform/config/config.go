package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	Environment   string
	DataDir       string
	JWTSigningKey string

	// Session lifecycle tuning.
	QRTTL                time.Duration
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	ReconnectMaxAttempts int

	// Routing store backend: "file" (default), "memory", "postgres", "redis".
	RoutingBackend string
	PostgresURL    string
	RedisURL       string

	// Lifecycle event publishing. Empty brokers disables the Kafka sink.
	KafkaBrokers string
	KafkaTopic   string

	// Messaging-network gateway bridge (events in, commands out, media over
	// HTTP).
	GatewayEventsTopic   string
	GatewayCommandsTopic string
	GatewayMediaURL      string

	// Collaboration-platform workspace API.
	WorkspaceAPIURL   string
	WorkspaceAPIToken string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("RELAYDESK_ADDR", ":8080"),
		Environment:   envOr("RELAYDESK_ENV", "development"),
		DataDir:       envOr("RELAYDESK_DATA_DIR", "./data"),
		JWTSigningKey: envOr("RELAYDESK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),

		QRTTL:                envDurationOr("RELAYDESK_QR_TTL", 60*time.Second),
		ReconnectBase:        envDurationOr("RELAYDESK_RECONNECT_BASE", time.Second),
		ReconnectCap:         envDurationOr("RELAYDESK_RECONNECT_CAP", 30*time.Second),
		ReconnectMaxAttempts: envIntOr("RELAYDESK_RECONNECT_MAX_ATTEMPTS", 5),

		RoutingBackend: envOr("RELAYDESK_ROUTING_BACKEND", "file"),
		PostgresURL:    os.Getenv("RELAYDESK_POSTGRES_URL"),
		RedisURL:       os.Getenv("RELAYDESK_REDIS_URL"),

		KafkaBrokers: os.Getenv("RELAYDESK_KAFKA_BROKERS"),
		KafkaTopic:   envOr("RELAYDESK_KAFKA_TOPIC", "relaydesk.lifecycle"),

		GatewayEventsTopic:   envOr("RELAYDESK_GATEWAY_EVENTS_TOPIC", "relaydesk.gateway.events"),
		GatewayCommandsTopic: envOr("RELAYDESK_GATEWAY_COMMANDS_TOPIC", "relaydesk.gateway.commands"),
		GatewayMediaURL:      os.Getenv("RELAYDESK_GATEWAY_MEDIA_URL"),

		WorkspaceAPIURL:   os.Getenv("RELAYDESK_WORKSPACE_API_URL"),
		WorkspaceAPIToken: os.Getenv("RELAYDESK_WORKSPACE_API_TOKEN"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// RedisConfig holds tuning for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults for the Redis pool.
func DefaultRedisConfig(url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
