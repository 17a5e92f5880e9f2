package embeddings

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedParallel_PreservesOrder(t *testing.T) {
	h := NewHashEmbedder(32)
	texts := make([]string, 23)
	for i := range texts {
		texts[i] = fmt.Sprintf("statement number %d", i)
	}

	vecs, err := EmbedParallel(context.Background(), h, texts, 4, 3)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, text := range texts {
		assert.Equal(t, h.Embed(text), vecs[i], "index %d", i)
	}
}

func TestEmbedParallel_Empty(t *testing.T) {
	vecs, err := EmbedParallel(context.Background(), NewHashEmbedder(8), nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbedParallel_PropagatesError(t *testing.T) {
	inner := &countingProvider{HashEmbedder: NewHashEmbedder(8), err: errors.New("boom")}
	_, err := EmbedParallel(context.Background(), inner, []string{"a", "b", "c"}, 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEmbedParallel_NilEmbedder(t *testing.T) {
	_, err := EmbedParallel(context.Background(), nil, []string{"a"}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
