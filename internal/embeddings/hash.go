package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimension is the bucket count used when none is configured.
const DefaultHashDimension = 256

// HashEmbedder is a deterministic bag-of-words embedder. Each token is
// hashed into one of Dimension buckets and the counts are L2-normalized.
// Empty text maps to the zero vector.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder. A non-positive dimension selects
// DefaultHashDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed returns the normalized vector for text.
func (h *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, h.dimension)
	for _, tok := range Tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		vec[hasher.Sum32()%uint32(h.dimension)]++
	}
	return Normalize(vec)
}

// EmbedDocuments embeds every text. Empty texts produce zero vectors.
func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.Embed(t)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.Embed(text), nil
}

// Dimension returns the bucket count.
func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

// Close is a no-op.
func (h *HashEmbedder) Close() error {
	return nil
}

// Tokenize lowercases text and splits it on anything that is not a letter,
// digit, '%', '$' or '.' inside a number.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%' || r == '$' || r == '.')
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
