package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr               string
	DatabaseURL        string
	Redis              RedisConfig
	KafkaBrokers       []string
	AuditTopic         string
	JWTSigningKey      string
	IdentifyMaxRetries int
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("COALESCE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	maxRetries := 3
	if v := os.Getenv("IDENTIFY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			maxRetries = n
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "contact-audit"
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:       brokers,
		AuditTopic:         auditTopic,
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		IdentifyMaxRetries: maxRetries,
	}
}
