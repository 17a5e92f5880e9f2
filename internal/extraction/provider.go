package extraction

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by NewExtractor.
const (
	ProviderDisabled  = "disabled"
	ProviderHeuristic = "heuristic"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxTokens        = 1024
	defaultTimeout          = 60 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Config selects and configures an extractor.
type Config struct {
	// Provider is one of heuristic (default), anthropic, openai, disabled.
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key" json:"-"`
	BaseURL   string `koanf:"base_url"`
	MaxTokens int    `koanf:"max_tokens"`
	// Timeout bounds a single HTTP call. The coordinator bounds the whole extraction.
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries below zero disables retries.
	MaxRetries  int           `koanf:"max_retries"`
	BaseBackoff time.Duration `koanf:"base_backoff"`
	// RateLimit is requests per second.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// DefaultConfig returns the heuristic extractor configuration.
func DefaultConfig() Config {
	return Config{Provider: ProviderHeuristic}.withDefaults("", "")
}

func (c Config) withDefaults(model, baseURL string) Config {
	if c.Provider == "" {
		c.Provider = ProviderHeuristic
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	return c
}

// NewExtractor creates an extractor based on configuration.
func NewExtractor(cfg Config, logger *zap.Logger) (Extractor, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderHeuristic, "":
		return NewHeuristicExtractor(), nil
	case ProviderDisabled:
		return NoOpExtractor{}, nil
	case ProviderAnthropic:
		return NewAnthropicExtractor(cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIExtractor(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
