package learning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/extraction"
)

// ErrInvalidQuote indicates a finalized quote the coordinator cannot learn from.
var ErrInvalidQuote = errors.New("invalid finalized quote")

// Path is the learning path a quote takes.
type Path string

const (
	PathCorrection Path = "correction"
	PathAcceptance Path = "acceptance"
	PathNone       Path = "none"
)

// Result summarizes what Process did with a quote.
type Result string

const (
	// ResultLearned means the profile was updated.
	ResultLearned Result = "learned"
	// ResultDuplicate means the quote id had already been applied.
	ResultDuplicate Result = "duplicate"
	// ResultSkipped means learning was skipped for a dependency failure.
	ResultSkipped Result = "skipped"
	// ResultInvalid means the quote failed validation.
	ResultInvalid Result = "invalid"
	// ResultFailed means the store rejected the update.
	ResultFailed Result = "failed"
)

// Skip reasons reported in Outcome.SkipReason, metrics and events.
const (
	SkipExtractionFailed  = "extraction_failed"
	SkipExtractionTimeout = "extraction_timeout"
	SkipInvalidQuote      = "invalid_quote"
	SkipUpdateLost        = "update_lost"
	SkipStoreError        = "store_error"
)

// FinalizedQuote is a quote that was sent to the customer, possibly after
// the contractor edited it.
type FinalizedQuote struct {
	QuoteID   string `json:"quote_id"`
	AccountID string `json:"account_id"`
	Category  string `json:"category"`
	// CategoryName is the display name used for a newly created profile.
	CategoryName   string `json:"category_name,omitempty"`
	JobDescription string `json:"job_description,omitempty"`

	// Edited marks a quote the contractor changed before sending. It takes
	// precedence over Accepted.
	Edited   bool `json:"edited"`
	Accepted bool `json:"accepted"`

	Total     float64               `json:"total"`
	Original  []extraction.LineItem `json:"original,omitempty"`
	Corrected []extraction.LineItem `json:"corrected,omitempty"`
	EditNote  string                `json:"edit_note,omitempty"`

	// Complexity is simple, medium or complex. Empty derives it from the
	// number of line items.
	Complexity  string    `json:"complexity,omitempty"`
	FinalizedAt time.Time `json:"finalized_at,omitempty"`
}

// Validate checks the quote carries an account, a category and a known
// complexity tier.
func (q FinalizedQuote) Validate() error {
	if strings.TrimSpace(q.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidQuote)
	}
	if strings.TrimSpace(q.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidQuote)
	}
	switch q.Complexity {
	case "", confidence.ComplexitySimple, confidence.ComplexityMedium, confidence.ComplexityComplex:
	default:
		return fmt.Errorf("%w: unknown complexity %q", ErrInvalidQuote, q.Complexity)
	}
	if q.Total < 0 {
		return fmt.Errorf("%w: negative total", ErrInvalidQuote)
	}
	return nil
}

// Path returns the learning path for q. Edited always selects correction.
func (q FinalizedQuote) Path() Path {
	switch {
	case q.Edited:
		return PathCorrection
	case q.Accepted:
		return PathAcceptance
	default:
		return PathNone
	}
}

// Diff returns the extraction input for an edited quote.
func (q FinalizedQuote) Diff() extraction.QuoteDiff {
	return extraction.QuoteDiff{
		QuoteID:        q.QuoteID,
		Category:       q.Category,
		JobDescription: q.JobDescription,
		Original:       q.Original,
		Corrected:      q.Corrected,
		EditNote:       q.EditNote,
	}
}

// Outcome reports what Process did. Err holds the cause of a skipped or
// failed quote; Process itself never fails.
type Outcome struct {
	QuoteID   string `json:"quote_id"`
	AccountID string `json:"account_id"`
	Category  string `json:"category"`
	Path      Path   `json:"path"`
	Result    Result `json:"result"`

	StatementsCreated   int `json:"statements_created,omitempty"`
	StatementsMerged    int `json:"statements_merged,omitempty"`
	StatementsRejected  int `json:"statements_rejected,omitempty"`
	StatementsEvicted   int `json:"statements_evicted,omitempty"`
	StatementsSeeded    int `json:"statements_seeded,omitempty"`
	PatternsTransferred int `json:"patterns_transferred,omitempty"`

	LearnedConfidence float64 `json:"learned_confidence"`
	SkipReason        string  `json:"skip_reason,omitempty"`
	Err               error   `json:"-"`
}
