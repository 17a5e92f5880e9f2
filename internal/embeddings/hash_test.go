package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	h := NewHashEmbedder(0)
	assert.Equal(t, DefaultHashDimension, h.Dimension())

	a := h.Embed("Increase deck railing price by 15%")
	b := h.Embed("Increase deck railing price by 15%")
	assert.Equal(t, a, b)
}

func TestHashEmbedder_Normalized(t *testing.T) {
	h := NewHashEmbedder(64)
	v := h.Embed("add 10% for second story access")

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestHashEmbedder_EmptyIsZero(t *testing.T) {
	h := NewHashEmbedder(16)
	v := h.Embed("")
	require.Len(t, v, 16)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestHashEmbedder_EmbedDocuments(t *testing.T) {
	h := NewHashEmbedder(32)
	vecs, err := h.EmbedDocuments(context.Background(), []string{"deck stain", "", "fence"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, h.Embed("fence"), vecs[2])
}

func TestHashEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashEmbedder(8).EmbedQuery(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"percent kept", "Add 15% markup.", []string{"add", "15%", "markup"}},
		{"dollars kept", "Charge $4.50/sqft", []string{"charge", "$4.50", "sqft"}},
		{"punctuation split", "deck, fence; railing", []string{"deck", "fence", "railing"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite clamps to zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_SimilarStatements(t *testing.T) {
	h := NewHashEmbedder(0)
	a := h.Embed("increase deck railing price by 15% for second story access")
	b := h.Embed("increase deck railing price by 15% for second story")
	c := h.Embed("offer repeat customers a small discount")

	assert.Greater(t, CosineSimilarity(a, b), 0.9)
	assert.Less(t, CosineSimilarity(a, c), CosineSimilarity(a, b))
}
