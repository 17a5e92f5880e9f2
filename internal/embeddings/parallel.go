package embeddings

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of texts sent per EmbedDocuments call.
const DefaultBatchSize = 8

// EmbedParallel embeds texts in batches of batchSize with at most limit
// batches in flight. Results keep input order. The first failing batch
// cancels the rest.
func EmbedParallel(ctx context.Context, e Embedder, texts []string, batchSize, limit int) ([][]float32, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: embedder cannot be nil", ErrInvalidConfig)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := e.EmbedDocuments(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("%w: batch %d-%d returned %d vectors", ErrEmbeddingFailed, start, end, len(vecs))
			}
			// Each batch writes a disjoint range of out.
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
