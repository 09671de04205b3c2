package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research pipeline system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// LLMConfig contains reasoning service provider configuration
type LLMConfig struct {
	Provider   string              `mapstructure:"provider"` // openai, groq
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Models     map[string]LLMModel `mapstructure:"models"`
	Routing    LLMRoutingConfig    `mapstructure:"routing"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for each pipeline stage
type LLMRoutingConfig struct {
	Planning     string `mapstructure:"planning"`
	Research     string `mapstructure:"research"`
	Verification string `mapstructure:"verification"`
	Fallback     string `mapstructure:"fallback"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	switch l.Provider {
	case "openai", "groq":
	case "":
		return fmt.Errorf("llm.provider is required")
	default:
		return fmt.Errorf("unsupported llm.provider: %s", l.Provider)
	}
	if len(l.Models) == 0 {
		return fmt.Errorf("llm.models must declare at least one model")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	LogFile      string `mapstructure:"log_file"`
}

// PipelineConfig contains agent pipeline settings
type PipelineConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations"`
	StageTimeout     time.Duration `mapstructure:"stage_timeout"`
	ModelCallRetries int           `mapstructure:"model_call_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
}

// Normalize applies defaults for unset pipeline values.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.MaxIterations <= 0 {
		p.MaxIterations = 15
	}
	if p.StageTimeout <= 0 {
		p.StageTimeout = 5 * time.Minute
	}
	if p.ModelCallRetries < 0 {
		p.ModelCallRetries = 0
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = 500 * time.Millisecond
	}
	return p
}

// ToolsConfig contains external research tool configurations
type ToolsConfig struct {
	WebSearch    WebSearchConfig    `mapstructure:"web_search"`
	Encyclopedia EncyclopediaConfig `mapstructure:"encyclopedia"`
	Archives     ArchivesConfig     `mapstructure:"archives"`
	PageFetch    PageFetchConfig    `mapstructure:"page_fetch"`
}

// WebSearchConfig contains SerpAPI web search settings
type WebSearchConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (w WebSearchConfig) Validate() error {
	if strings.TrimSpace(w.APIKey) == "" {
		return fmt.Errorf("tools.web_search.api_key is required")
	}
	return nil
}

// EncyclopediaConfig contains Wikipedia lookup settings
type EncyclopediaConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ArchivesConfig contains DPLA archival search settings
type ArchivesConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (a ArchivesConfig) Validate() error {
	if strings.TrimSpace(a.APIKey) == "" {
		return fmt.Errorf("tools.archives.api_key is required")
	}
	return nil
}

// PageFetchConfig controls the headless page fetch tool
type PageFetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// Normalize applies defaults for unset page fetch values.
func (p PageFetchConfig) Normalize() PageFetchConfig {
	if p.Timeout <= 0 {
		p.Timeout = 20 * time.Second
	}
	if p.MaxChars <= 0 {
		p.MaxChars = 8000
	}
	return p
}

// ReportConfig contains report rendering settings
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// Normalize applies defaults for unset report values.
func (r ReportConfig) Normalize() ReportConfig {
	if strings.TrimSpace(r.OutputDir) == "" {
		r.OutputDir = "reports"
	}
	return r
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Index    IndexConfig    `mapstructure:"index"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// IndexConfig contains full-text report index settings
type IndexConfig struct {
	Path string `mapstructure:"path"`
}

// Validate checks that every credential the pipeline needs is present.
// Construction must fail here, before any network client is built.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Tools.WebSearch.Validate(); err != nil {
		return err
	}
	if err := c.Tools.Archives.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateServer checks server-only requirements on top of Validate.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Postgres.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Redis.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadConfig loads config from file and environment (CHRONICLER_*).
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("llm.provider", "groq")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("pipeline.max_iterations", 15)
	viper.SetDefault("tools.archives.page_size", 5)
	viper.SetDefault("tools.web_search.max_results", 10)
	viper.SetDefault("report.output_dir", "reports")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CHRONICLER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	config.Pipeline = config.Pipeline.Normalize()
	config.Report = config.Report.Normalize()
	config.Tools.PageFetch = config.Tools.PageFetch.Normalize()

	return &config, nil
}
