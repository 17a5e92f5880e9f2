package extraction

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrInvalidConfig indicates an extractor could not be built from its config.
	ErrInvalidConfig = errors.New("invalid extraction config")
	// ErrEmptyDiff indicates a diff with no line items on either side.
	ErrEmptyDiff = errors.New("quote diff has no line items")
	// ErrExtractionFailed wraps provider failures after retries are exhausted.
	ErrExtractionFailed = errors.New("delta extraction failed")
)

// LineItem is one priced row of a quote.
type LineItem struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	ItemType string  `json:"item_type,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Amount   float64 `json:"amount"`
	Notes    string  `json:"notes,omitempty"`
}

// Label returns the item type, falling back to the display name.
func (li LineItem) Label() string {
	if li.ItemType != "" {
		return li.ItemType
	}
	return li.Name
}

// QuoteDiff is the generated quote next to what the contractor sent.
type QuoteDiff struct {
	QuoteID        string     `json:"quote_id"`
	Category       string     `json:"category"`
	JobDescription string     `json:"job_description,omitempty"`
	Original       []LineItem `json:"original"`
	Corrected      []LineItem `json:"corrected"`
	// EditNote is the contractor's free-text explanation for the edit, if any.
	EditNote string `json:"edit_note,omitempty"`
}

// Validate reports ErrEmptyDiff when neither side has items.
func (d QuoteDiff) Validate() error {
	if len(d.Original) == 0 && len(d.Corrected) == 0 {
		return ErrEmptyDiff
	}
	return nil
}

// Delta is one explicit correction: an item whose price moved.
type Delta struct {
	ItemType       string  `json:"item_type"`
	OriginalValue  float64 `json:"original_value"`
	CorrectedValue float64 `json:"corrected_value"`
	Reason         string  `json:"reason,omitempty"`
	// Learning is drafted statement text supplied by an LLM extractor.
	Learning string `json:"learning,omitempty"`
}

// Genuine reports whether the values actually differ.
func (d Delta) Genuine() bool {
	return math.Abs(d.CorrectedValue-d.OriginalValue) > 1e-9
}

// Impact is the absolute dollar change.
func (d Delta) Impact() float64 {
	return math.Abs(d.CorrectedValue - d.OriginalValue)
}

// SignedMagnitude is the percent change relative to the original value.
// An item added from zero counts as +100%.
func (d Delta) SignedMagnitude() float64 {
	if d.OriginalValue == 0 {
		switch {
		case d.CorrectedValue > 0:
			return 100
		case d.CorrectedValue < 0:
			return -100
		default:
			return 0
		}
	}
	return (d.CorrectedValue - d.OriginalValue) / math.Abs(d.OriginalValue) * 100
}

// Magnitude is the absolute percent change.
func (d Delta) Magnitude() float64 {
	return math.Abs(d.SignedMagnitude())
}

// Extractor derives deltas from a quote diff.
type Extractor interface {
	// Extract returns the correction deltas for diff. Implementations may
	// return deltas that are not genuine; callers filter with Genuine.
	Extract(ctx context.Context, diff QuoteDiff) ([]Delta, error)

	// Name identifies the extractor in logs and metrics.
	Name() string
}

// NoOpExtractor never finds deltas. It backs the disabled provider.
type NoOpExtractor struct{}

// Extract returns no deltas.
func (NoOpExtractor) Extract(context.Context, QuoteDiff) ([]Delta, error) {
	return nil, nil
}

// Name returns "disabled".
func (NoOpExtractor) Name() string { return ProviderDisabled }

var _ Extractor = NoOpExtractor{}
