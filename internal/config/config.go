package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tgrall/gears-explorer/internal/gears"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // upper bound for one HTTP-driven operation

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Settings
	RedisURL             string     // initial endpoint, empty = do not connect until one is set
	SettingsFile         string     // optional YAML file holding url + aggregation_mode
	SettingsPollInterval time.Duration
	AggregationMode      gears.Mode // "pushdown" | "local"

	// Redis session
	RedisDT          time.Duration // dial timeout
	RedisRT          time.Duration // read timeout, aggregation scripts can be slow
	RedisWT          time.Duration // write timeout
	RedisPingTimeout time.Duration // timeout for the ping that opens a session
	RedisPoolSize    int

	NotificationBuffer int // notifications retained for the API

	AllowedCIDRS []string // optional, restrict mutating endpoints to these IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GEARS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GEARS_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("GEARS_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("GEARS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GEARS_PRETTY_LOG", true),

		// Settings
		RedisURL:             getenv("GEARS_REDIS_URL", ""),
		SettingsFile:         getenv("GEARS_SETTINGS_FILE", ""),
		SettingsPollInterval: mustDuration("GEARS_SETTINGS_POLL_INTERVAL", 5*time.Second),
		AggregationMode:      mustMode("GEARS_AGGREGATION_MODE", gears.ModePushdown),

		// Redis settings
		RedisDT:          mustDuration("GEARS_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:          mustDuration("GEARS_REDIS_READ_TIMEOUT", 30*time.Second),
		RedisWT:          mustDuration("GEARS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPingTimeout: mustDuration("GEARS_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:    getenvInt("GEARS_REDIS_POOL_SIZE", 4),

		NotificationBuffer: getenvInt("GEARS_NOTIFICATION_BUFFER", 100),

		// Access restrictions
		AllowedCIDRS: splitAndTrim(getenv("GEARS_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("GEARS_TRUST_PROXY", false),
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisURL = redactURL(cfg.RedisURL)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustMode(key string, def gears.Mode) gears.Mode {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	m, ok := gears.ParseMode(strings.ToLower(strings.TrimSpace(v)))
	if !ok {
		panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %q (want %q or %q)", key, v, gears.ModePushdown, gears.ModeLocal))
	}
	return m
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// redactURL hides the password of a redis:// URL. Unparseable input is
// hidden entirely.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***REDACTED***"
	}
	return u.Redacted()
}
