package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

var managedVars = []string{
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_TRANSPORT",
	"OPENAI_API_KEY", "DASHSCOPE_API_KEY", "DASHSCOPE_API_URL",
	"IMAGE_FETCH_TIMEOUT", "MAX_IMAGES", "CATALOG_SEARCH_BASE_URL",
	"LOG_LEVEL", "DEBUG",
}

// clearEnv unsets managedVars for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedVars {
		orig, ok := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if ok {
				os.Setenv(key, orig)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Images.MaxImages != 6 {
		t.Errorf("MaxImages = %d, want 6", cfg.Images.MaxImages)
	}
	if cfg.Images.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.Images.FetchTimeout)
	}
	if cfg.Gemini.Transport != TransportREST {
		t.Errorf("Transport = %q, want %q", cfg.Gemini.Transport, TransportREST)
	}
	if cfg.DashScope.BaseURL != "https://dashscope-intl.aliyuncs.com/compatible-mode/v1" {
		t.Errorf("DashScope.BaseURL = %q", cfg.DashScope.BaseURL)
	}
	if got := cfg.Catalog.SearchBaseURL("2"); got != "https://apix.boribori.co.kr" {
		t.Errorf("SearchBaseURL(2) = %q", got)
	}
	if got := cfg.Catalog.SearchBaseURL("9"); got != cfg.Catalog.BaseURL {
		t.Errorf("SearchBaseURL(9) = %q, want catalog base", got)
	}
	if cfg.AnyProvider() {
		t.Error("AnyProvider() = true with no keys set")
	}
}

func TestLoad_GoogleKeyFallback(t *testing.T) {
	clearEnv(t)
	os.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.APIKey != "google-key" {
		t.Errorf("Gemini.APIKey = %q, want google-key", cfg.Gemini.APIKey)
	}

	os.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg, _ = Load()
	if cfg.Gemini.APIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should win, got %q", cfg.Gemini.APIKey)
	}
}

func TestLoad_TimeoutClamp(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"5s", 5 * time.Second},
		{"30s", MaxImageFetchTimeout},
		{"0s", MaxImageFetchTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			os.Setenv("IMAGE_FETCH_TIMEOUT", tt.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Images.FetchTimeout != tt.want {
				t.Errorf("FetchTimeout = %v, want %v", cfg.Images.FetchTimeout, tt.want)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"GEMINI_TRANSPORT", "grpc"},
		{"MAX_IMAGES", "-1"},
		{"MAX_IMAGES", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			os.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s expected error", tt.key, tt.value)
			}
		})
	}
}

func TestCheckProviders(t *testing.T) {
	clearEnv(t)
	os.Setenv("DASHSCOPE_API_KEY", "ds-key")
	os.Setenv("GEMINI_TRANSPORT", "SDK")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.Transport != TransportSDK {
		t.Errorf("Transport = %q, want sdk", cfg.Gemini.Transport)
	}

	configured := map[string]bool{}
	for _, s := range cfg.CheckProviders() {
		configured[s.Name] = s.Configured
	}
	if !configured["qwen"] || configured["openai"] || configured["gemini"] {
		t.Errorf("CheckProviders() = %v", configured)
	}
	if !cfg.AnyProvider() {
		t.Error("AnyProvider() = false with DashScope key set")
	}
}

func TestConfig_Level(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  slog.Level
	}{
		{"info", false, slog.LevelInfo},
		{"DEBUG", false, slog.LevelDebug},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"bogus", false, slog.LevelInfo},
		{"error", true, slog.LevelDebug},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level, Debug: tt.debug}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q, debug=%v) = %v, want %v", tt.level, tt.debug, got, tt.want)
		}
	}
}
