package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{JWTSecret: "secret"},
		LLM: LLMConfig{
			Provider: "groq",
			APIKey:   "llm-key",
			Models:   map[string]LLMModel{"default": {Name: "test-model"}},
		},
		Tools: ToolsConfig{
			WebSearch: WebSearchConfig{APIKey: "serp-key"},
			Archives:  ArchivesConfig{APIKey: "dpla-key"},
		},
		Storage: StorageConfig{
			Postgres: PostgresConfig{Host: "localhost", DBName: "chronicler"},
			Redis:    RedisConfig{Host: "localhost", Port: "6379"},
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"llm key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"llm provider", func(c *Config) { c.LLM.Provider = "" }, "llm.provider"},
		{"unsupported provider", func(c *Config) { c.LLM.Provider = "mystery" }, "unsupported"},
		{"no models", func(c *Config) { c.LLM.Models = nil }, "llm.models"},
		{"web search key", func(c *Config) { c.Tools.WebSearch.APIKey = "" }, "web_search.api_key"},
		{"archives key", func(c *Config) { c.Tools.Archives.APIKey = "" }, "archives.api_key"},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidateServerRequiresJWTAndStores(t *testing.T) {
	cfg := validConfig()
	cfg.Server.JWTSecret = ""
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected jwt_secret error, got %v", err)
	}

	cfg = validConfig()
	cfg.Storage.Postgres = PostgresConfig{}
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected postgres error, got %v", err)
	}

	cfg = validConfig()
	cfg.Storage.Redis.Host = ""
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis error, got %v", err)
	}
}

func TestPipelineNormalizeDefaults(t *testing.T) {
	p := PipelineConfig{}.Normalize()
	if p.MaxIterations != 15 {
		t.Fatalf("expected default max iterations 15, got %d", p.MaxIterations)
	}
	if p.StageTimeout != 5*time.Minute {
		t.Fatalf("expected default stage timeout 5m, got %s", p.StageTimeout)
	}
	if p.RetryBackoff <= 0 {
		t.Fatalf("expected positive retry backoff")
	}

	p = PipelineConfig{MaxIterations: 3, StageTimeout: time.Minute}.Normalize()
	if p.MaxIterations != 3 || p.StageTimeout != time.Minute {
		t.Fatalf("explicit values must survive Normalize, got %+v", p)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@h:5432/db"}
	if p.DSN() != "postgres://u:p@h:5432/db" {
		t.Fatalf("explicit URL must win, got %q", p.DSN())
	}

	p = PostgresConfig{User: "u", Password: "p", Host: "db-host", DBName: "chronicler"}
	dsn := p.DSN()
	if !strings.Contains(dsn, "db-host:5432") || !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("expected defaults in DSN, got %q", dsn)
	}
}
