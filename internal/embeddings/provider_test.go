package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ProviderConfig
		wantType interface{}
		wantDim  int
		wantErr  error
	}{
		{"default is hash", ProviderConfig{}, &HashEmbedder{}, DefaultHashDimension, nil},
		{"hash with dimension", ProviderConfig{Provider: "hash", Dimension: 64}, &HashEmbedder{}, 64, nil},
		{"cached hash", ProviderConfig{Provider: "HASH", CacheSize: 8}, &CachedProvider{}, DefaultHashDimension, nil},
		{"tei", ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080", Model: "BAAI/bge-base-en-v1.5"}, &TEIProvider{}, 768, nil},
		{"tei missing url", ProviderConfig{Provider: "tei"}, nil, 0, ErrInvalidConfig},
		{"openai missing model", ProviderConfig{Provider: "openai", BaseURL: "http://localhost"}, nil, 0, ErrInvalidConfig},
		{"unknown", ProviderConfig{Provider: "word2vec"}, nil, 0, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg, nil)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
			assert.Equal(t, tt.wantDim, p.Dimension())
			assert.NoError(t, p.Close())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := map[string]int{
		"BAAI/bge-small-en-v1.5":                 384,
		"BAAI/bge-base-en-v1.5":                  768,
		"sentence-transformers/all-MiniLM-L6-v2": 384,
		"text-embedding-3-small":                 1536,
		"text-embedding-3-large":                 3072,
		"text-embedding-ada-002":                 1536,
		"unknown-model":                          384,
	}
	for model, want := range tests {
		assert.Equal(t, want, detectDimensionFromModel(model), model)
	}
}
