package embeddings

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by NewProvider.
const (
	ProviderHash      = "hash"
	ProviderTEI       = "tei"
	ProviderOpenAI    = "openai"
	ProviderFastEmbed = "fastembed"
)

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of hash (default), tei, openai, fastembed.
	Provider string `koanf:"provider"`
	// Model is the embedding model name (tei, openai, fastembed).
	Model string `koanf:"model"`
	// BaseURL is the endpoint for tei and openai.
	BaseURL string `koanf:"base_url"`
	// APIKey is used by openai.
	APIKey string `koanf:"api_key" json:"-"`
	// Dimension overrides the detected vector size. For hash it is the bucket count.
	Dimension int `koanf:"dimension"`
	// CacheDir is the model cache directory (fastembed).
	CacheDir string `koanf:"cache_dir"`
	// CacheSize enables an LRU of that many vectors when positive.
	CacheSize int `koanf:"cache_size"`
	// Timeout bounds tei requests.
	Timeout time.Duration `koanf:"timeout"`
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderHash, "":
		p = NewHashEmbedder(cfg.Dimension)
	case ProviderTEI:
		p, err = NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}, logger)
	case ProviderOpenAI:
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
		}, logger)
	case ProviderFastEmbed:
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedProvider(p, cfg.CacheSize)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		return cached, nil
	}
	return p, nil
}

// fastEmbedModelDimension returns dimensions for known local models.
func fastEmbedModelDimension(model string) (int, bool) {
	dims := map[string]int{
		"BAAI/bge-small-en-v1.5":                 384,
		"BAAI/bge-base-en-v1.5":                  768,
		"sentence-transformers/all-MiniLM-L6-v2": 384,
	}
	d, ok := dims[model]
	return d, ok
}

// detectDimensionFromModel guesses the vector size from a model name.
// Falls back to 384.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "3-large"):
		return 3072
	case strings.Contains(m, "3-small"), strings.Contains(m, "ada-002"):
		return 1536
	case strings.Contains(m, "base"):
		return 768
	case strings.Contains(m, "large"):
		return 1024
	default:
		return 384
	}
}
