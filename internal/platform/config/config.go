package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	LogLevel      string

	DatabaseURL string
	Redis       RedisConfig
	SMTP        SMTPConfig
	Kafka       KafkaConfig
	DeathCheck  DeathCheckConfig
	RateLimit   RateLimitConfig

	// DefaultDeathTimeout is applied to newly provisioned owners.
	DefaultDeathTimeout time.Duration
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig configures invitation delivery. An empty Host selects the log mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// KafkaConfig configures the audit sink. Empty Brokers keeps audit in memory.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// Lock backends for the death-check scheduler.
const (
	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// DeathCheckConfig configures the finalization scheduler.
type DeathCheckConfig struct {
	Interval       time.Duration
	InitialDelay   time.Duration
	LockAtMostFor  time.Duration
	LockAtLeastFor time.Duration
	LockBackend    string
}

// RateLimitConfig sets per-caller request budgets. Redis backs the counters
// when configured; otherwise they live in process memory.
type RateLimitConfig struct {
	Disabled       bool
	ReadPerMinute  int
	WritePerMinute int
	InvitesPerHour int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          getEnv("MYWILL_ADDR", ":8080"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     getEnv("JWT_ISSUER", "mywill"),
		JWTAudience:   getEnv("JWT_AUDIENCE", "mywill-api"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "noreply@mywill.local"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "mywill.audit"),
		},
	}

	var err error
	if cfg.SMTP.Port, err = getInt("SMTP_PORT", 587); err != nil {
		return Server{}, err
	}
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	limits := []struct {
		key  string
		def  int
		dest *int
	}{
		{"RATE_LIMIT_READ_PER_MINUTE", 300, &cfg.RateLimit.ReadPerMinute},
		{"RATE_LIMIT_WRITE_PER_MINUTE", 60, &cfg.RateLimit.WritePerMinute},
		{"RATE_LIMIT_INVITES_PER_HOUR", 20, &cfg.RateLimit.InvitesPerHour},
	}
	for _, l := range limits {
		if *l.dest, err = getInt(l.key, l.def); err != nil {
			return Server{}, err
		}
	}
	if cfg.RateLimit.Disabled, err = getBool("RATE_LIMIT_DISABLED", false); err != nil {
		return Server{}, err
	}
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"REDIS_DIAL_TIMEOUT", 5 * time.Second, &cfg.Redis.DialTimeout},
		{"REDIS_READ_TIMEOUT", 3 * time.Second, &cfg.Redis.ReadTimeout},
		{"REDIS_WRITE_TIMEOUT", 3 * time.Second, &cfg.Redis.WriteTimeout},
		{"DEATH_TIMEOUT_DEFAULT", 24 * time.Hour, &cfg.DefaultDeathTimeout},
		{"DEATH_CHECK_INTERVAL", time.Minute, &cfg.DeathCheck.Interval},
		{"DEATH_CHECK_INITIAL_DELAY", 3 * time.Minute, &cfg.DeathCheck.InitialDelay},
		{"DEATH_CHECK_LOCK_AT_MOST", 10 * time.Minute, &cfg.DeathCheck.LockAtMostFor},
		{"DEATH_CHECK_LOCK_AT_LEAST", time.Minute, &cfg.DeathCheck.LockAtLeastFor},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return Server{}, err
		}
	}

	cfg.DeathCheck.LockBackend = getEnv("SCHEDULER_LOCK", LockLocal)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the process cannot start with.
func (c Server) Validate() error {
	switch c.DeathCheck.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("SCHEDULER_LOCK=redis requires REDIS_URL")
		}
	case LockPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SCHEDULER_LOCK=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown SCHEDULER_LOCK %q", c.DeathCheck.LockBackend)
	}
	if c.DeathCheck.Interval <= 0 {
		return fmt.Errorf("DEATH_CHECK_INTERVAL must be positive")
	}
	if c.DeathCheck.LockAtMostFor <= 0 {
		return fmt.Errorf("DEATH_CHECK_LOCK_AT_MOST must be positive")
	}
	if c.DeathCheck.LockAtLeastFor < 0 {
		return fmt.Errorf("DEATH_CHECK_LOCK_AT_LEAST must not be negative")
	}
	if c.DeathCheck.LockAtLeastFor > c.DeathCheck.LockAtMostFor {
		return fmt.Errorf("DEATH_CHECK_LOCK_AT_LEAST must not exceed DEATH_CHECK_LOCK_AT_MOST")
	}
	if !c.RateLimit.Disabled && (c.RateLimit.ReadPerMinute <= 0 || c.RateLimit.WritePerMinute <= 0 || c.RateLimit.InvitesPerHour <= 0) {
		return fmt.Errorf("rate limits must be positive unless RATE_LIMIT_DISABLED is set")
	}
	if c.DefaultDeathTimeout < time.Second {
		return fmt.Errorf("DEATH_TIMEOUT_DEFAULT must be at least 1s")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
