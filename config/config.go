// CLAUDE:SUMMARY jurimon configuration: defaults, optional YAML file, environment overrides, validation.
// CLAUDE:EXPORTS Config, BackendConfig, CooldownConfig, RedisConfig, SchedulerConfig, WebhookConfig, PortalConfig, RetentionConfig, TraceConfig, Default, Load, Validate
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/jurimon/horosafe"
)

// Config is the full jurimon configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"`
	Backend   BackendConfig   `yaml:"backend"`
	Cooldown  CooldownConfig  `yaml:"cooldown"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Portal    PortalConfig    `yaml:"portal"`
	Retention RetentionConfig `yaml:"retention"`
	Trace     TraceConfig     `yaml:"trace"`
}

// BackendConfig points at the backend proxying the provider.
type BackendConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Token            string        `yaml:"token"`
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// CooldownConfig selects where cooldown marks live.
type CooldownConfig struct {
	Window  time.Duration `yaml:"window"`
	Backend string        `yaml:"backend"` // sqlite | redis
	Prefix  string        `yaml:"prefix"`
}

// RedisConfig is used when Cooldown.Backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SchedulerConfig configures the background resync.
type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	MaxFailCount int           `yaml:"max_fail_count"`
}

// WebhookConfig configures the provider webhook receiver.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// PortalConfig rate-limits the public portal routes per client IP.
type PortalConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// RetentionConfig prunes the event trail and heartbeats. Zero keeps forever.
type RetentionConfig struct {
	EventDays     int `yaml:"event_days"`
	HeartbeatDays int `yaml:"heartbeat_days"`
}

// TraceConfig records every SQL statement of the cache database in a
// separate trace database.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// SlowThreshold promotes a statement's log line to Warn and is the
	// default floor of the traces command.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8090",
		DBPath:   "data/jurimon.db",
		LogLevel: "info",
		Backend: BackendConfig{
			Timeout:          20 * time.Second,
			Retries:          2,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Cooldown: CooldownConfig{
			Window:  30 * time.Second,
			Backend: "sqlite",
			Prefix:  "jurimon:cooldown:",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     5 * time.Minute,
			MaxFailCount: 3,
		},
		Portal:    PortalConfig{RequestsPerMinute: 10, Burst: 5},
		Retention: RetentionConfig{EventDays: 90, HeartbeatDays: 7},
		Trace:     TraceConfig{DBPath: "data/traces.db", SlowThreshold: 100 * time.Millisecond},
	}
}

// Load returns Default merged with the YAML file at path (skipped when path
// is empty) and then with the environment, validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides fields from JURIMON_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("JURIMON_LISTEN", &c.Listen)
	str("JURIMON_DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("JUDIT_BACKEND_URL", &c.Backend.BaseURL)
	str("JUDIT_BACKEND_TOKEN", &c.Backend.Token)
	dur("JUDIT_BACKEND_TIMEOUT", &c.Backend.Timeout)
	num("JUDIT_BACKEND_RETRIES", &c.Backend.Retries)
	dur("JURIMON_COOLDOWN_WINDOW", &c.Cooldown.Window)
	str("JURIMON_COOLDOWN_BACKEND", &c.Cooldown.Backend)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	flag("JURIMON_SCHEDULER_ENABLED", &c.Scheduler.Enabled)
	dur("JURIMON_SCHEDULER_INTERVAL", &c.Scheduler.Interval)
	str("JUDIT_WEBHOOK_SECRET", &c.Webhook.Secret)
	num("JURIMON_PORTAL_RPM", &c.Portal.RequestsPerMinute)
	flag("JURIMON_TRACE_SQL", &c.Trace.Enabled)
	str("JURIMON_TRACE_DB", &c.Trace.DBPath)
	dur("JURIMON_TRACE_SLOW", &c.Trace.SlowThreshold)
	return errors.Join(errs...)
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if err := horosafe.ValidateBaseURL(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend.base_url %q: %w", c.Backend.BaseURL, err)
	}
	if c.Webhook.Secret != "" {
		if err := horosafe.ValidateSecret([]byte(c.Webhook.Secret)); err != nil {
			return fmt.Errorf("webhook.secret: %w", err)
		}
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be > 0")
	}
	if c.Backend.Retries < 0 {
		return fmt.Errorf("backend.retries must be >= 0")
	}
	if c.Cooldown.Window <= 0 {
		return fmt.Errorf("cooldown.window must be > 0")
	}
	switch c.Cooldown.Backend {
	case "sqlite", "":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when cooldown.backend is redis")
		}
	default:
		return fmt.Errorf("unsupported cooldown.backend %q (use sqlite or redis)", c.Cooldown.Backend)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler.interval must be at least 1s")
	}
	if c.Portal.RequestsPerMinute < 0 || c.Portal.Burst < 0 {
		return fmt.Errorf("portal limits must be >= 0")
	}
	if c.Retention.EventDays < 0 || c.Retention.HeartbeatDays < 0 {
		return fmt.Errorf("retention days must be >= 0")
	}
	if c.Trace.Enabled && c.Trace.DBPath == "" {
		return fmt.Errorf("trace.db_path is required when trace is enabled")
	}
	if c.Trace.SlowThreshold <= 0 {
		return fmt.Errorf("trace.slow_threshold must be > 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	return nil
}
