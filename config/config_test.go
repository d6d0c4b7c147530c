package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jurimon.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	// WHAT: Values in the file override defaults; absent keys keep them.
	// WHY: Operators only write what differs from the defaults.
	path := writeConfig(t, `
listen: ":9000"
backend:
  base_url: https://api.example.com
  token: abc
cooldown:
  window: 45s
trace:
  slow_threshold: 250ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Cooldown.Window != 45*time.Second {
		t.Errorf("window = %v", cfg.Cooldown.Window)
	}
	if cfg.Trace.SlowThreshold != 250*time.Millisecond {
		t.Errorf("trace slow threshold = %v", cfg.Trace.SlowThreshold)
	}
	if cfg.Backend.Timeout != 20*time.Second || cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("defaults lost: timeout=%v interval=%v", cfg.Backend.Timeout, cfg.Scheduler.Interval)
	}
}

func TestApplyEnv_OverridesFile(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"JUDIT_BACKEND_URL":         "http://backend:8080",
		"JURIMON_COOLDOWN_BACKEND":  "redis",
		"REDIS_DB":                  "2",
		"JURIMON_SCHEDULER_ENABLED": "false",
		"JURIMON_COOLDOWN_WINDOW":   "1m",
		"JUDIT_WEBHOOK_SECRET":      testSecret,
		"JURIMON_TRACE_SLOW":        "2s",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "http://backend:8080" || cfg.Cooldown.Backend != "redis" || cfg.Redis.DB != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Scheduler.Enabled || cfg.Cooldown.Window != time.Minute || cfg.Webhook.Secret != testSecret {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Trace.SlowThreshold != 2*time.Second {
		t.Errorf("trace slow threshold = %v", cfg.Trace.SlowThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	cfg := Default()
	env := map[string]string{"REDIS_DB": "two", "JUDIT_BACKEND_TIMEOUT": "soon"}
	err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"REDIS_DB", "JUDIT_BACKEND_TIMEOUT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Backend.BaseURL = "https://api.example.com"
		return c
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"no base url":        func(c *Config) { c.Backend.BaseURL = "" },
		"ftp base url":       func(c *Config) { c.Backend.BaseURL = "ftp://x" },
		"zero window":        func(c *Config) { c.Cooldown.Window = 0 },
		"unknown cooldown":   func(c *Config) { c.Cooldown.Backend = "memcached" },
		"redis no addr":      func(c *Config) { c.Cooldown.Backend = "redis"; c.Redis.Addr = "" },
		"tiny interval":      func(c *Config) { c.Scheduler.Interval = time.Millisecond },
		"bad log level":      func(c *Config) { c.LogLevel = "verbose" },
		"negative retries":   func(c *Config) { c.Backend.Retries = -1 },
		"negative retention": func(c *Config) { c.Retention.EventDays = -1 },
		"trace without db":   func(c *Config) { c.Trace.Enabled = true; c.Trace.DBPath = "" },
		"short secret":       func(c *Config) { c.Webhook.Secret = "s3cret" },
		"zero slow trace":    func(c *Config) { c.Trace.SlowThreshold = 0 },
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mod(c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
