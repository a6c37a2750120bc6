package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voiceai", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Vapi:  VapiConfig{APIKey: "vk"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "voiceai"
	c.Auth.JWTAudience = "api"
	c.Vapi.AgentID = "agent-1"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Vapi.BaseURL != "https://api.vapi.ai" {
		t.Fatalf("expected vapi base url default, got %q", c.Vapi.BaseURL)
	}
	if c.Calls.MaxConcurrentPerUser != 1 {
		t.Fatalf("expected default call cap 1, got %d", c.Calls.MaxConcurrentPerUser)
	}
	if c.Calls.ConcurrencyCapTTL != 2*time.Hour {
		t.Fatalf("expected default cap ttl 2h, got %v", c.Calls.ConcurrencyCapTTL)
	}
	if len(c.App.CORSOrigins) == 0 {
		t.Fatalf("expected default CORS origins outside production")
	}
}

func TestValidate_MissingVapiKey(t *testing.T) {
	c := validLocal()
	c.Vapi.APIKey = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing VAPI_API_KEY")
	}
}
