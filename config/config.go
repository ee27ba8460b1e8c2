package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Harvest   HarvestConfig
	LLM       LLMConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser launched per invocation.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is the fixed client identity sent with every request.
	UserAgent string
}

// HarvestConfig controls the pagination and enrichment pipelines.
// Every bound here is a hard deadline; no wait is unbounded.
type HarvestConfig struct {
	// MaxIterations bounds pagination regardless of next-control availability.
	MaxIterations int // default: 2

	// PageLoadTimeout bounds the initial navigation of each iteration.
	PageLoadTimeout time.Duration // default: 120s

	// ContentTimeout bounds the wait for the first listing entry to render.
	ContentTimeout time.Duration // default: 30s

	// SettleDelay is the fixed pause after scrolling, letting lazy content load.
	SettleDelay time.Duration // default: 5s

	// NextNavTimeout bounds the navigation triggered by the next control.
	NextNavTimeout time.Duration // default: 30s

	// DetailNavTimeout bounds navigation to an entity's detail page.
	DetailNavTimeout time.Duration // default: 60s

	// LabelTimeout bounds the wait for the labelled control on a detail page.
	LabelTimeout time.Duration // default: 10s

	// EntrySelector matches one listing entry in the rendered DOM.
	EntrySelector string

	// NextSelector matches the pagination control. When several elements
	// match, the last one is authoritative.
	NextSelector string

	// ProfileLinkSelector matches the detail-page anchor within an entry.
	ProfileLinkSelector string

	// CompanyLabelPrefix is the accessible-label marker on the detail page
	// control carrying the current company ("<prefix>: <value>. <suffix>").
	CompanyLabelPrefix string
}

// LLMConfig controls the structured-extraction service client.
type LLMConfig struct {
	// APIKey authenticates against the extraction service. Callers may
	// override it per request (BYOK).
	APIKey string

	// Model is the extraction model identifier. Default: "gpt-4o-mini".
	Model string

	// BaseURL is the OpenAI-compatible API root. Default: "https://api.openai.com/v1".
	BaseURL string

	// Timeout bounds each per-batch extraction request.
	Timeout time.Duration // default: 60s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the sync-endpoint result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("HARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("HARVEST_PORT", 8080),
			Mode: envOr("HARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("HARVEST_HEADLESS", true),
			NoSandbox:  envBoolOr("HARVEST_NO_SANDBOX", true),
			BrowserBin: os.Getenv("HARVEST_BROWSER_BIN"),
			UserAgent: envOr("HARVEST_USER_AGENT",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		},
		Harvest: HarvestConfig{
			MaxIterations:    envIntOr("HARVEST_MAX_ITERATIONS", 2),
			PageLoadTimeout:  envDurationOr("HARVEST_PAGE_LOAD_TIMEOUT", 120*time.Second),
			ContentTimeout:   envDurationOr("HARVEST_CONTENT_TIMEOUT", 30*time.Second),
			SettleDelay:      envDurationOr("HARVEST_SETTLE_DELAY", 5*time.Second),
			NextNavTimeout:   envDurationOr("HARVEST_NEXT_NAV_TIMEOUT", 30*time.Second),
			DetailNavTimeout: envDurationOr("HARVEST_DETAIL_NAV_TIMEOUT", 60*time.Second),
			LabelTimeout:     envDurationOr("HARVEST_LABEL_TIMEOUT", 10*time.Second),
			EntrySelector: envOr("HARVEST_ENTRY_SELECTOR",
				"li.reusable-search__result-container"),
			NextSelector: envOr("HARVEST_NEXT_SELECTOR",
				"button.artdeco-pagination__button--next"),
			ProfileLinkSelector: envOr("HARVEST_PROFILE_LINK_SELECTOR",
				"a.app-aware-link"),
			CompanyLabelPrefix: envOr("HARVEST_COMPANY_LABEL_PREFIX", "Current company"),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("HARVEST_LLM_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("HARVEST_LLM_BASE_URL", "https://api.openai.com/v1"),
			Timeout: envDurationOr("HARVEST_LLM_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 5.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("HARVEST_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
