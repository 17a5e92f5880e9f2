// Package embeddings turns learning statements into fixed-length vectors.
//
// The default HashEmbedder hashes tokens into buckets and normalizes the
// result, which is enough to detect near-duplicate pricing statements.
// TEI, OpenAI-compatible and FastEmbed providers sit behind the same
// Provider interface, so clustering and selection never depend on the
// backing model. CachedProvider adds an LRU in front of any provider and
// EmbedParallel fans batches out across goroutines.
package embeddings
