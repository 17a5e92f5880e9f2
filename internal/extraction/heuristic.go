package extraction

import (
	"context"
	"strings"
	"unicode"
)

// HeuristicExtractor diffs line items without calling out to a model.
//
// Items are paired by ID first, then by normalized name. A pair whose
// amounts differ yields a delta. Items present on only one side yield a
// delta against zero. The reason is the corrected item's notes, falling
// back to the diff's edit note.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a heuristic extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Name returns "heuristic".
func (h *HeuristicExtractor) Name() string { return ProviderHeuristic }

// Extract pairs line items and reports price changes in corrected order,
// followed by removed items in original order.
func (h *HeuristicExtractor) Extract(ctx context.Context, diff QuoteDiff) ([]Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := diff.Validate(); err != nil {
		return nil, err
	}

	used := make([]bool, len(diff.Original))
	byID := make(map[string]int, len(diff.Original))
	byName := make(map[string][]int, len(diff.Original))
	for i, item := range diff.Original {
		if item.ID != "" {
			byID[item.ID] = i
		}
		key := normalizeName(item.Name)
		byName[key] = append(byName[key], i)
	}

	take := func(item LineItem) int {
		if item.ID != "" {
			if i, ok := byID[item.ID]; ok && !used[i] {
				used[i] = true
				return i
			}
		}
		for _, i := range byName[normalizeName(item.Name)] {
			if !used[i] {
				used[i] = true
				return i
			}
		}
		return -1
	}

	var deltas []Delta
	for _, corrected := range diff.Corrected {
		idx := take(corrected)
		reason := firstNonEmpty(corrected.Notes, diff.EditNote)
		if idx < 0 {
			deltas = append(deltas, Delta{
				ItemType:       corrected.Label(),
				OriginalValue:  0,
				CorrectedValue: corrected.Amount,
				Reason:         firstNonEmpty(reason, "item added by contractor"),
			})
			continue
		}
		original := diff.Original[idx]
		d := Delta{
			ItemType:       firstNonEmpty(corrected.ItemType, original.ItemType, corrected.Name, original.Name),
			OriginalValue:  original.Amount,
			CorrectedValue: corrected.Amount,
			Reason:         reason,
		}
		if d.Genuine() {
			deltas = append(deltas, d)
		}
	}

	for i, original := range diff.Original {
		if used[i] {
			continue
		}
		deltas = append(deltas, Delta{
			ItemType:       original.Label(),
			OriginalValue:  original.Amount,
			CorrectedValue: 0,
			Reason:         firstNonEmpty(diff.EditNote, "item removed by contractor"),
		})
	}

	return deltas, nil
}

// normalizeName lowercases and collapses everything but letters and digits.
func normalizeName(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ Extractor = (*HeuristicExtractor)(nil)
