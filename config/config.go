// Package config loads productlens settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Gemini transports
const (
	TransportREST = "rest"
	TransportSDK  = "sdk"
)

// MaxImageFetchTimeout bounds IMAGE_FETCH_TIMEOUT.
const MaxImageFetchTimeout = 10 * time.Second

type Config struct {
	Catalog   CatalogConfig
	Images    ImagesConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	DashScope DashScopeConfig
	Server    ServerConfig

	// PromptsFile replaces the embedded prompt set when set.
	PromptsFile string `env:"PROMPTS_FILE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG"`
}

type CatalogConfig struct {
	BaseURL string `env:"CATALOG_BASE_URL" envDefault:"https://hapix.halfclub.com"`

	// SearchBaseURLs maps a site code to its search host.
	SearchBaseURLs map[string]string `env:"CATALOG_SEARCH_BASE_URL" envDefault:"1|https://hapix.halfclub.com,2|https://apix.boribori.co.kr" envSeparator:"," envKeyValSeparator:"|"`

	CDNURL    string        `env:"CATALOG_CDN_URL" envDefault:"https://cdn2.halfclub.com"`
	ImageDims string        `env:"CATALOG_IMAGE_DIMS" envDefault:"1000x1000"`
	Timeout   time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`
	SiteCd    string        `env:"CATALOG_SITE_CD" envDefault:"1"`
}

type ImagesConfig struct {
	FetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`
	MaxImages    int           `env:"MAX_IMAGES" envDefault:"6"`
	Workers      int           `env:"IMAGE_FETCH_WORKERS" envDefault:"4"`
}

type GeminiConfig struct {
	APIKey       string `env:"GEMINI_API_KEY"`
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	BaseURL      string `env:"GEMINI_BASE_URL"`
	Transport    string `env:"GEMINI_TRANSPORT" envDefault:"rest"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

type DashScopeConfig struct {
	APIKey  string `env:"DASHSCOPE_API_KEY"`
	BaseURL string `env:"DASHSCOPE_API_URL" envDefault:"https://dashscope-intl.aliyuncs.com/compatible-mode/v1"`
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Timeout         time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit   int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"8"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = cfg.Gemini.GoogleAPIKey
	}
	cfg.Gemini.Transport = strings.ToLower(strings.TrimSpace(cfg.Gemini.Transport))
	switch cfg.Gemini.Transport {
	case TransportREST, TransportSDK:
	default:
		return nil, fmt.Errorf("GEMINI_TRANSPORT must be %q or %q, got %q", TransportREST, TransportSDK, cfg.Gemini.Transport)
	}

	if cfg.Images.FetchTimeout <= 0 || cfg.Images.FetchTimeout > MaxImageFetchTimeout {
		cfg.Images.FetchTimeout = MaxImageFetchTimeout
	}
	if cfg.Images.MaxImages < 0 {
		return nil, fmt.Errorf("MAX_IMAGES must not be negative, got %d", cfg.Images.MaxImages)
	}
	if cfg.Server.ThrottleLimit < 1 {
		return nil, fmt.Errorf("SERVER_THROTTLE_LIMIT must be at least 1, got %d", cfg.Server.ThrottleLimit)
	}

	return cfg, nil
}

// SearchBaseURL returns the search host for siteCd, falling back to the
// catalog host.
func (c CatalogConfig) SearchBaseURL(siteCd string) string {
	if u, ok := c.SearchBaseURLs[siteCd]; ok && u != "" {
		return u
	}
	return c.BaseURL
}

// Level maps LOG_LEVEL and DEBUG to a slog level.
func (c *Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ProviderStatus reports whether a model family has credentials.
type ProviderStatus struct {
	Name       string
	EnvVar     string
	Configured bool
}

// CheckProviders lists every model family and whether it can be used.
func (c *Config) CheckProviders() []ProviderStatus {
	return []ProviderStatus{
		{Name: "openai", EnvVar: "OPENAI_API_KEY", Configured: c.OpenAI.APIKey != ""},
		{Name: "gemini", EnvVar: "GEMINI_API_KEY", Configured: c.Gemini.APIKey != ""},
		{Name: "qwen", EnvVar: "DASHSCOPE_API_KEY", Configured: c.DashScope.APIKey != ""},
	}
}

// AnyProvider reports whether at least one family is configured.
func (c *Config) AnyProvider() bool {
	for _, s := range c.CheckProviders() {
		if s.Configured {
			return true
		}
	}
	return false
}

// GetAPIKeyHelp returns setup instructions for provider credentials.
func GetAPIKeyHelp() string {
	return `To analyze products you need credentials for at least one model provider.

Option 1: Create a .env file in the working directory:
  OPENAI_API_KEY=sk-...
  GEMINI_API_KEY=...
  DASHSCOPE_API_KEY=...

Option 2: Set environment variables:
  export OPENAI_API_KEY="your-api-key"        # gpt-4o, gpt-4o-mini
  export GEMINI_API_KEY="your-api-key"        # gemini-* (GOOGLE_API_KEY also works)
  export DASHSCOPE_API_KEY="your-api-key"     # qwen-* via DashScope

Optional:
  OPENAI_BASE_URL, GEMINI_BASE_URL, DASHSCOPE_API_URL   custom endpoints
  GEMINI_TRANSPORT=sdk                                  use the Gemini Go SDK
  MAX_IMAGES=6, IMAGE_FETCH_TIMEOUT=10s                 image limits
  LOG_LEVEL=debug                                       verbose logs

Gemini keys: https://aistudio.google.com/apikey
DashScope keys: https://dashscope.console.aliyun.com`
}
