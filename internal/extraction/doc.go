// Package extraction turns a quote edit into structured correction deltas.
//
// A finalized quote carries the line items the system generated and the
// line items the contractor actually sent. An Extractor compares the two
// and returns one Delta per priced item whose value changed, with the
// contractor's stated reason when one is available.
//
// # Extractors
//
//   - HeuristicExtractor: matches line items by ID or normalized name and
//     diffs their amounts. No network access.
//   - AnthropicExtractor: asks Claude for the deltas and a drafted learning
//     sentence per delta. Rate limited, retried with exponential backoff.
//   - OpenAIExtractor: the same prompt through langchaingo against any
//     OpenAI-compatible endpoint.
//
// Use NewExtractor to build one from configuration:
//
//	ext, err := extraction.NewExtractor(extraction.Config{Provider: "heuristic"}, logger)
//	deltas, err := ext.Extract(ctx, diff)
//
// # Drafting
//
// DraftStatement renders a delta as a learning statement when the extractor
// did not supply one. The template always names the item and both prices,
// which keeps drafted text specific enough to pass quality scoring.
package extraction
