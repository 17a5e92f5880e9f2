package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("overloaded"))
			return
		}

		var req struct {
			Inputs json.RawMessage `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var many []string
		if err := json.Unmarshal(req.Inputs, &many); err != nil {
			many = []string{"single"}
		}
		out := make([][]float32, len(many))
		for i := range many {
			out[i] = []float32{float32(i), 1, 0}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewTEIProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TEIConfig
		wantDim int
		wantErr bool
	}{
		{"valid", TEIConfig{BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"}, 384, false},
		{"explicit dimension", TEIConfig{BaseURL: "http://localhost:8080", Dimension: 3}, 3, false},
		{"missing base URL", TEIConfig{Model: "x"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewTEIProvider(tt.cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, p.Dimension())
		})
	}
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	srv := newTEIServer(t, http.StatusOK)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Dimension: 3}, nil)
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1, 0}, vecs[1])
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv := newTEIServer(t, http.StatusOK)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Dimension: 3}, nil)
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "deck")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ServerError(t *testing.T) {
	srv := newTEIServer(t, http.StatusServiceUnavailable)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
}
