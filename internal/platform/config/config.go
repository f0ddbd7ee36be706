package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr string

	// DatabaseURL selects the postgres submission store when set;
	// otherwise the in-memory store is used.
	DatabaseURL string

	// StagesFile points at a JSON stage catalog definition. Empty means
	// the built-in default catalog.
	StagesFile string

	// JWTSigningKey enables bearer-token auth on the workflow routes when
	// non-empty. Identity resolution stays upstream; the engine only sees
	// resolved ids.
	JWTSigningKey string

	Redis  RedisConfig
	Kafka  KafkaConfig
	Notify NotifyConfig
}

// RedisConfig configures the optional redis notification channel.
type RedisConfig struct {
	URL          string
	Channel      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional kafka notification topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NotifyConfig tunes the async notification dispatcher.
type NotifyConfig struct {
	Buffer int
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("CLEARANCE_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("CLEARANCE_DATABASE_URL"),
		StagesFile:    os.Getenv("CLEARANCE_STAGES_FILE"),
		JWTSigningKey: os.Getenv("CLEARANCE_JWT_SIGNING_KEY"),
		Redis: RedisConfig{
			URL:          os.Getenv("CLEARANCE_REDIS_URL"),
			Channel:      envOr("CLEARANCE_REDIS_CHANNEL", "clearance.notifications"),
			PoolSize:     envInt("CLEARANCE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CLEARANCE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: envOr("CLEARANCE_KAFKA_TOPIC", "clearance.notifications"),
		},
		Notify: NotifyConfig{
			Buffer: envInt("CLEARANCE_NOTIFY_BUFFER", 256),
		},
	}
	if brokers := os.Getenv("CLEARANCE_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
