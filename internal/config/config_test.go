package config

import (
	"strings"
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	v, err := envFloat("TEST_FLOAT", 0)
	if err != nil || v != 2.5 {
		t.Fatalf("got %v, %v; want 2.5", v, err)
	}

	t.Setenv("TEST_FLOAT_BAD", "fast")
	if _, err := envFloat("TEST_FLOAT_BAD", 0); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Seconds() != 5 {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if got := err.Error(); got != `TEST_DUR_BAD="five-seconds" is not a valid duration` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestLoadFailsOnInvalidPort(t *testing.T) {
	t.Setenv("HAKARI_PORT", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid HAKARI_PORT")
	}
	// Error should mention the variable name and value.
	if got := err.Error(); !strings.Contains(got, "HAKARI_PORT") || !strings.Contains(got, "abc") {
		t.Fatalf("error should mention HAKARI_PORT and value 'abc', got: %s", got)
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("HAKARI_PORT", "abc")
	t.Setenv("HAKARI_RATE_LIMIT_RPS", "lots")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !strings.Contains(got, "HAKARI_PORT") {
		t.Fatalf("error should mention HAKARI_PORT, got: %s", got)
	}
	if !strings.Contains(got, "HAKARI_RATE_LIMIT_RPS") {
		t.Fatalf("error should mention HAKARI_RATE_LIMIT_RPS, got: %s", got)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	// With no env vars set, Load should succeed using all defaults.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.MaxBatchSize != 1000 || cfg.RankLimit != 10 {
		t.Fatalf("unexpected defaults: batch=%d rank=%d", cfg.MaxBatchSize, cfg.RankLimit)
	}
	if cfg.MaxRequestBodyBytes != 4*1024*1024 {
		t.Fatalf("expected 4 MiB body limit, got %d", cfg.MaxRequestBodyBytes)
	}
	if !cfg.RateLimitEnabled || cfg.JWTExpiration != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"half a key pair", func(c *Config) { c.JWTPrivateKeyPath = "/k.pem" }, "must be set together"},
		{"rank limit", func(c *Config) { c.RankLimit = 0 }, "HAKARI_RANK_LIMIT"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "HAKARI_LOG_LEVEL"},
		{"rate limit", func(c *Config) { c.RateLimitRPS = 0 }, "HAKARI_RATE_LIMIT_RPS"},
		{"batch size", func(c *Config) { c.MaxBatchSize = -1 }, "HAKARI_MAX_BATCH_SIZE"},
		{"port", func(c *Config) { c.Port = 70000 }, "HAKARI_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}

	disabled := base
	disabled.RateLimitEnabled = false
	disabled.RateLimitRPS = 0
	if err := disabled.Validate(); err != nil {
		t.Fatalf("rate limit settings are ignored when disabled: %v", err)
	}
}
