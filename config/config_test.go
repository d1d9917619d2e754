package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("DATA_BACKEND", "Memory")
	t.Setenv("DEFAULT_CURRENCY", "usd")

	Load()

	if AppConfig.Port != "8080" {
		t.Errorf("Port = %q, want 8080", AppConfig.Port)
	}
	if AppConfig.DataBackend != BackendMemory {
		t.Errorf("DataBackend = %q, want %q", AppConfig.DataBackend, BackendMemory)
	}
	if AppConfig.DefaultCurrency != "USD" {
		t.Errorf("DefaultCurrency = %q, want USD", AppConfig.DefaultCurrency)
	}
	if AppConfig.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v, want one week", AppConfig.SessionTTL)
	}
	if err := AppConfig.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:            "8080",
			DataBackend:     BackendPostgres,
			DatabaseURL:     "postgres://localhost/db",
			JWTSecret:       "0123456789abcdef",
			SessionTTL:      time.Hour,
			DefaultCurrency: "INR",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"unknown backend", func(c *Config) { c.DataBackend = "mysql" }, "DATA_BACKEND"},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"memory without url", func(c *Config) { c.DataBackend = BackendMemory; c.DatabaseURL = "" }, ""},
		{"bad ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"bad currency", func(c *Config) { c.DefaultCurrency = "R$" }, "DEFAULT_CURRENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestGetDuration_Invalid(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	if got := getDuration("SESSION_TTL", time.Hour); got != 0 {
		t.Errorf("getDuration() = %v, want 0 for unparsable value", got)
	}
}
