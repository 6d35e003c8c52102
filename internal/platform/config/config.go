package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	stringutil "safepilgrim/pkg/platform/strings"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies; 0 disables the limit.
	MaxBodyBytes int64
	StoreBackend string

	Log      LogConfig
	Memory   MemoryConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Audit    AuditConfig

	problems []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MemoryConfig bounds the memory backend so it cannot grow without limit.
type MemoryConfig struct {
	RecordTTL  time.Duration
	MaxRecords int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RecordTTL bounds how long issued records live in Redis.
	RecordTTL time.Duration
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig is empty when KAFKA_BROKERS is unset; audit events then stay in memory.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type AuditConfig struct {
	BufferSize int
	// MemoryLimit caps the events kept when audit falls back to memory.
	MemoryLimit int
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Unparseable values fall back to their defaults and are reported by Validate.
func FromEnv() Server {
	cfg := Server{}
	cfg.Addr = cfg.str("DIGITALID_ADDR", ":8080")
	cfg.RequestTimeout = cfg.duration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.ShutdownTimeout = cfg.duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.MaxBodyBytes = int64(cfg.integer("MAX_BODY_BYTES", 10<<20))
	cfg.StoreBackend = strings.ToLower(cfg.str("STORE_BACKEND", BackendMemory))

	cfg.Log = LogConfig{
		Level:  strings.ToLower(cfg.str("LOG_LEVEL", "info")),
		Format: strings.ToLower(cfg.str("LOG_FORMAT", "json")),
	}
	cfg.Memory = MemoryConfig{
		RecordTTL:  cfg.duration("MEMORY_RECORD_TTL", 720*time.Hour),
		MaxRecords: cfg.integer("MEMORY_MAX_RECORDS", 100000),
	}
	cfg.Redis = RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     cfg.integer("REDIS_POOL_SIZE", 10),
		MinIdleConns: cfg.integer("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		RecordTTL:    cfg.duration("REDIS_RECORD_TTL", 720*time.Hour),
	}
	cfg.Postgres = PostgresConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    cfg.integer("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    cfg.integer("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: cfg.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	cfg.Kafka = KafkaConfig{
		Brokers:    stringutil.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
		AuditTopic: cfg.str("KAFKA_AUDIT_TOPIC", "digitalid.audit"),
	}
	cfg.Audit = AuditConfig{
		BufferSize:  cfg.integer("AUDIT_BUFFER_SIZE", 1024),
		MemoryLimit: cfg.integer("AUDIT_MEMORY_LIMIT", 10000),
	}
	return cfg
}

// Validate reports env values that were ignored and backend settings that
// cannot work together.
func (c Server) Validate() error {
	errs := make([]error, 0, len(c.problems))
	for _, p := range c.problems {
		errs = append(errs, errors.New(p))
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=redis requires REDIS_URL"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must not be negative"))
	}
	if c.Audit.BufferSize < 0 {
		errs = append(errs, errors.New("AUDIT_BUFFER_SIZE must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Server) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c *Server) integer(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("invalid %s %q: using default %d", key, raw, def))
		return def
	}
	return v
}

func (c *Server) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		c.problems = append(c.problems, fmt.Sprintf("invalid %s %q: using default %s", key, raw, def))
		return def
	}
	return v
}
