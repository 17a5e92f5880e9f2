// Package dedup clusters semantically equivalent learning statements and
// collapses each cluster into one canonical statement.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/embeddings"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// DefaultThreshold is the cosine similarity at or above which two
// statements are duplicates.
const DefaultThreshold = 0.90

// ErrNilCandidate indicates FindMatch was called without a candidate.
var ErrNilCandidate = errors.New("candidate statement cannot be nil")

// Config holds clustering parameters.
type Config struct {
	// Threshold is the minimum similarity to join a cluster.
	Threshold float64 `koanf:"threshold"`

	// BatchSize is the number of statements per embedding call.
	BatchSize int `koanf:"batch_size"`

	// Parallelism bounds concurrent embedding calls. Zero uses GOMAXPROCS.
	Parallelism int `koanf:"parallelism"`
}

// DefaultConfig returns the standard clustering parameters.
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		BatchSize: embeddings.DefaultBatchSize,
	}
}

// Stats describes one deduplication pass.
type Stats struct {
	OriginalCount    int     `json:"original_count"`
	FinalCount       int     `json:"final_count"`
	ClustersFound    int     `json:"clusters_found"`
	ReductionPercent float64 `json:"reduction_percent"`
	Skipped          bool    `json:"skipped,omitempty"`
}

// Result is the deduplicated pool and its stats.
type Result struct {
	Statements []profile.Statement
	Stats      Stats
}

// Engine deduplicates statement pools.
type Engine struct {
	cfg      Config
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewEngine creates an engine. A nil embedder selects the hash embedder.
func NewEngine(cfg Config, embedder embeddings.Embedder, logger *zap.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embeddings.DefaultBatchSize
	}
	if embedder == nil {
		embedder = embeddings.NewHashEmbedder(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, embedder: embedder, logger: logger}
}

// Threshold returns the configured similarity threshold.
func (e *Engine) Threshold() float64 {
	return e.cfg.Threshold
}

// Deduplicate clusters pool greedily in input order. Each unassigned
// statement seeds a cluster and absorbs every later unassigned statement
// whose similarity to the seed reaches the threshold. The input slice is
// not modified.
//
// When embeddings cannot be computed the pool is returned unchanged with
// Stats.Skipped set.
func (e *Engine) Deduplicate(ctx context.Context, pool []profile.Statement) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	work := make([]profile.Statement, len(pool))
	copy(work, pool)

	stats := Stats{OriginalCount: len(pool)}
	if len(work) < 2 {
		stats.FinalCount = len(work)
		return Result{Statements: work, Stats: stats}, nil
	}

	if err := e.ensureEmbeddings(ctx, work); err != nil {
		e.logger.Warn("embedding failed, skipping deduplication",
			zap.Int("pool_size", len(pool)),
			zap.Error(err))
		stats.FinalCount = len(pool)
		stats.Skipped = true
		return Result{Statements: work, Stats: stats}, nil
	}

	// A representative that is not its cluster's seed can sit within the
	// threshold of a statement the seed rejected, so passes repeat until
	// nothing merges.
	out, sizes := work, make([]int, len(work))
	for i := range sizes {
		sizes[i] = 1
	}
	for {
		var merged bool
		out, sizes, merged = e.cluster(out, sizes)
		if !merged {
			break
		}
	}
	for _, n := range sizes {
		if n > 1 {
			stats.ClustersFound++
		}
	}

	stats.FinalCount = len(out)
	stats.ReductionPercent = float64(stats.OriginalCount-stats.FinalCount) / float64(stats.OriginalCount) * 100

	if stats.ClustersFound > 0 {
		e.logger.Debug("deduplicated statement pool",
			zap.Int("original_count", stats.OriginalCount),
			zap.Int("final_count", stats.FinalCount),
			zap.Int("clusters_found", stats.ClustersFound))
	}
	return Result{Statements: out, Stats: stats}, nil
}

// cluster runs one greedy pass. sizes tracks how many original statements
// each entry stands for.
func (e *Engine) cluster(work []profile.Statement, sizes []int) ([]profile.Statement, []int, bool) {
	assigned := make([]bool, len(work))
	out := make([]profile.Statement, 0, len(work))
	outSizes := make([]int, 0, len(work))
	merged := false
	for i := range work {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []int{i}
		n := sizes[i]
		for j := i + 1; j < len(work); j++ {
			if assigned[j] {
				continue
			}
			if embeddings.CosineSimilarity(work[i].Embedding, work[j].Embedding) >= e.cfg.Threshold {
				assigned[j] = true
				members = append(members, j)
				n += sizes[j]
			}
		}

		if len(members) == 1 {
			out = append(out, work[i])
		} else {
			merged = true
			out = append(out, collapse(work, members))
		}
		outSizes = append(outSizes, n)
	}
	return out, outSizes, merged
}

// FindMatch returns the index of the pool statement most similar to
// candidate, provided the similarity reaches the threshold, or -1.
// Missing embeddings on candidate and pool are filled in place.
func (e *Engine) FindMatch(ctx context.Context, candidate *profile.Statement, pool []profile.Statement) (int, float64, error) {
	if candidate == nil {
		return -1, 0, ErrNilCandidate
	}
	if len(candidate.Embedding) == 0 {
		vec, err := e.embedder.EmbedQuery(ctx, candidate.Text)
		if err != nil {
			return -1, 0, fmt.Errorf("embedding candidate: %w", err)
		}
		candidate.Embedding = vec
	}
	if err := e.ensureEmbeddings(ctx, pool); err != nil {
		return -1, 0, err
	}

	best, bestSim := -1, 0.0
	for i := range pool {
		sim := embeddings.CosineSimilarity(candidate.Embedding, pool[i].Embedding)
		if sim >= e.cfg.Threshold && sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best, bestSim, nil
}

func (e *Engine) ensureEmbeddings(ctx context.Context, pool []profile.Statement) error {
	var idx []int
	var texts []string
	for i := range pool {
		if len(pool[i].Embedding) == 0 {
			idx = append(idx, i)
			texts = append(texts, pool[i].Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vecs, err := embeddings.EmbedParallel(ctx, e.embedder, texts, e.cfg.BatchSize, e.cfg.Parallelism)
	if err != nil {
		return fmt.Errorf("embedding %d statements: %w", len(texts), err)
	}
	for k, i := range idx {
		pool[i].Embedding = vecs[k]
	}
	return nil
}

// collapse picks the cluster representative and folds the other members into it.
func collapse(work []profile.Statement, members []int) profile.Statement {
	rep := members[0]
	for _, m := range members[1:] {
		if outranks(work[m], work[rep]) {
			rep = m
		}
	}
	canonical := work[rep]
	for _, m := range members {
		if m != rep {
			Merge(&canonical, work[m])
		}
	}
	return canonical
}

// outranks orders candidates for representative: confidence, samples,
// impact, then last_seen_at.
func outranks(a, b profile.Statement) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.SampleCount != b.SampleCount {
		return a.SampleCount > b.SampleCount
	}
	if a.TotalImpact != b.TotalImpact {
		return a.TotalImpact > b.TotalImpact
	}
	return a.LastSeenAt.After(b.LastSeenAt)
}

// Merge folds from into into. Samples and impact are summed, confidence
// and last_seen_at take the maximum.
func Merge(into *profile.Statement, from profile.Statement) {
	into.SampleCount += from.SampleCount
	into.TotalImpact += from.TotalImpact
	if from.Confidence > into.Confidence {
		into.Confidence = from.Confidence
	}
	into.Confidence = profile.ClampConfidence(into.Confidence)
	if from.LastSeenAt.After(into.LastSeenAt) {
		into.LastSeenAt = from.LastSeenAt
	}
	into.WasDeduplicated = true
	into.MergedCount += 1 + from.MergedCount
}
