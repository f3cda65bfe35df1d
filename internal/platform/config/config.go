package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	Environment     string
	ServiceName     string
	LogLevel        string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Auth         AuthConfig
	Notification NotificationConfig
}

// DatabaseConfig selects the persistence backend. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig configures the catalog read-through cache. An empty URL
// disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CatalogTTL   time.Duration
}

// KafkaConfig configures the notification sender. No brokers selects the
// log sender.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// NotificationConfig sizes the asynchronous dispatcher.
type NotificationConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            getEnv("BOXINATOR_ADDR", ":8080"),
		Environment:     getEnv("BOXINATOR_ENV", "development"),
		ServiceName:     getEnv("BOXINATOR_SERVICE_NAME", "boxinator"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     getBool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CatalogTTL:   getDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:    getEnv("KAFKA_NOTIFICATION_TOPIC", "shipment-notifications"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "boxinator"),
		},
		Auth: AuthConfig{
			// Development default; production deployments must override it.
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        getEnv("JWT_ISSUER", "boxinator"),
			Audience:      getEnv("JWT_AUDIENCE", "boxinator-api"),
		},
		Notification: NotificationConfig{
			BufferSize:    getInt("NOTIFICATION_BUFFER_SIZE", 1024),
			BatchSize:     getInt("NOTIFICATION_BATCH_SIZE", 50),
			FlushInterval: getDuration("NOTIFICATION_FLUSH_INTERVAL", 500*time.Millisecond),
		},
	}
}

// UsesPostgres reports whether a database URL was configured.
func (s Server) UsesPostgres() bool {
	return s.Database.URL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
