// Package config reads the daemon configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled   bool
	Brokers   string
	Topic     string
	QueueSize int
}

type Config struct {
	Addr              string
	LogLevel          string
	RedisAddr         string
	UpstreamURL       string
	UpstreamTimeout   time.Duration
	StoreOpTimeout    time.Duration
	CoverageCacheSize int
	Events            EventsCfg
}

func FromEnv() Config {
	return Config{
		Addr:              getenv("ADDR", ":8090"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		UpstreamURL:       getenv("UPSTREAM_URL", "http://localhost:8081"),
		UpstreamTimeout:   getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		StoreOpTimeout:    getduration("STORE_OP_TIMEOUT", 250*time.Millisecond),
		CoverageCacheSize: getint("COVERAGE_CACHE_SIZE", 1024),
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:     getenv("KAFKA_TOPIC", "histcache-fills"),
			QueueSize: getint("EVENTS_QUEUE", 1024),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
