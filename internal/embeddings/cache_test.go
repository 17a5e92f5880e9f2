package embeddings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	*HashEmbedder
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (c *countingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.EmbedDocuments(ctx, texts)
}

func TestCachedProvider_EmbedsOnlyMisses(t *testing.T) {
	inner := &countingProvider{HashEmbedder: NewHashEmbedder(16)}
	c, err := NewCachedProvider(inner, 10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)

	vecs, err := c.EmbedDocuments(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"c"}, inner.calls[1])
	assert.Equal(t, inner.Embed("a"), vecs[2])

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
	assert.Equal(t, 3, stats.Entries)
}

func TestCachedProvider_ErrorNotCached(t *testing.T) {
	inner := &countingProvider{HashEmbedder: NewHashEmbedder(16), err: errors.New("down")}
	c, err := NewCachedProvider(inner, 4)
	require.NoError(t, err)

	_, err = c.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCachedProvider_Query(t *testing.T) {
	c, err := NewCachedProvider(NewHashEmbedder(16), 0)
	require.NoError(t, err)

	v1, err := c.EmbedQuery(context.Background(), "deck")
	require.NoError(t, err)
	v2, err := c.EmbedQuery(context.Background(), "deck")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), c.Stats().Hits)
	assert.Equal(t, 16, c.Dimension())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestNewCachedProvider_NilProvider(t *testing.T) {
	_, err := NewCachedProvider(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
