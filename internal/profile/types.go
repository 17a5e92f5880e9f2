// Package profile defines the persisted records of the pricing learning engine.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Confidence bounds applied to every stored confidence value.
const (
	MinConfidence = 0.0
	MaxConfidence = 0.95
)

// Default record bounds.
const (
	DefaultMaxStatements     = 20
	DefaultMagnitudeWindow   = 20
	DefaultAcceptedWindow    = 10
	DefaultProcessedWindow   = 50
	DefaultLearnedConfidence = 0.35
	CurrentSchemaVersion     = 1
	legacyStatementAgeInDays = 7
)

var (
	// ErrEmptyAccount indicates a missing account id.
	ErrEmptyAccount = errors.New("account id cannot be empty")

	// ErrEmptyCategory indicates a missing pricing category.
	ErrEmptyCategory = errors.New("category cannot be empty")

	// ErrEmptyText indicates empty statement text.
	ErrEmptyText = errors.New("statement text cannot be empty")

	// ErrUnsupportedSchema indicates a record written by a newer schema.
	ErrUnsupportedSchema = errors.New("unsupported schema version")
)

// Source records how a statement entered a category pool.
type Source string

const (
	// SourceCorrection is a statement learned from an edited quote.
	SourceCorrection Source = "correction"

	// SourceAcceptance is a statement reinforced by an accepted quote.
	SourceAcceptance Source = "acceptance"

	// SourceDNATransfer is a statement inherited from another category.
	SourceDNATransfer Source = "dna_transfer"
)

// Key identifies one category profile.
type Key struct {
	AccountID string
	Category  string
}

// String returns "account:category".
func (k Key) String() string {
	return k.AccountID + ":" + k.Category
}

// Validate checks both parts are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.AccountID) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(k.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Statement is a short natural-language pricing rule learned for a category.
type Statement struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`

	// Category is the pricing category that owns the statement.
	Category string `json:"category"`

	// Text is the learning itself.
	Text string `json:"text"`

	// QualityScore is the 0-100 quality score at creation time.
	QualityScore float64 `json:"quality_score"`

	// Confidence is clamped to [0.0, 0.95].
	Confidence float64 `json:"confidence"`

	// SampleCount is the number of corrections that produced or reinforced it.
	SampleCount int `json:"sample_count"`

	// TotalImpact is the cumulative absolute money delta behind the statement.
	TotalImpact float64 `json:"total_impact"`

	// Embedding is the cached vector for similarity. May be empty.
	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Source     Source    `json:"source"`

	// WasDeduplicated marks a statement that absorbed near-duplicates.
	WasDeduplicated bool `json:"was_deduplicated,omitempty"`

	// MergedCount is the number of statements absorbed into this one.
	MergedCount int `json:"merged_count,omitempty"`
}

// NewStatement creates a statement with a fresh id and timestamps.
func NewStatement(category, text string, source Source, confidence float64, now time.Time) (*Statement, error) {
	if strings.TrimSpace(category) == "" {
		return nil, ErrEmptyCategory
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return &Statement{
		ID:          uuid.New().String(),
		Category:    category,
		Text:        strings.TrimSpace(text),
		Confidence:  ClampConfidence(confidence),
		SampleCount: 1,
		CreatedAt:   now,
		LastSeenAt:  now,
		Source:      source,
	}, nil
}

// IsLegacy reports whether the statement was migrated from a bare string.
func (s *Statement) IsLegacy() bool {
	return s.CreatedAt.IsZero()
}

// AgeDays returns the age in days at now. Legacy statements report a fixed age.
func (s *Statement) AgeDays(now time.Time) float64 {
	if s.IsLegacy() {
		return legacyStatementAgeInDays
	}
	d := now.Sub(s.CreatedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Boost adds delta to the confidence and clamps the result.
func (s *Statement) Boost(delta float64) {
	s.Confidence = ClampConfidence(s.Confidence + delta)
}

// ClampConfidence bounds c to [MinConfidence, MaxConfidence].
func ClampConfidence(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// Dimensions holds the four confidence sub-scores and their composite.
type Dimensions struct {
	Data     float64 `json:"data"`
	Accuracy float64 `json:"accuracy"`
	Recency  float64 `json:"recency"`
	Coverage float64 `json:"coverage"`
	Overall  float64 `json:"overall"`
}

// AcceptedQuote is one entry of the accepted-totals audit window.
type AcceptedQuote struct {
	QuoteID    string    `json:"quote_id"`
	Total      float64   `json:"total"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// CategoryProfile accumulates pricing knowledge for one account and category.
type CategoryProfile struct {
	SchemaVersion int    `json:"schema_version"`
	AccountID     string `json:"account_id"`
	Category      string `json:"category"`
	DisplayName   string `json:"display_name"`

	Statements []Statement `json:"statements"`

	Confidence        Dimensions `json:"confidence_dimensions"`
	LearnedConfidence float64    `json:"learned_confidence"`

	QuoteCount      int `json:"quote_count"`
	AcceptanceCount int `json:"acceptance_count"`
	CorrectionCount int `json:"correction_count"`

	CorrectionMagnitudes   []float64       `json:"correction_magnitudes"`
	ComplexityDistribution map[string]int  `json:"complexity_distribution"`
	AcceptedTotals         []AcceptedQuote `json:"accepted_totals"`
	ProcessedQuotes        []string        `json:"processed_quotes"`

	LastQuoteAt time.Time `json:"last_quote_at"`

	// Version is the optimistic concurrency counter owned by the store.
	Version int64 `json:"version"`
}

// NewCategoryProfile creates an empty profile for key.
func NewCategoryProfile(key Key, displayName string) *CategoryProfile {
	if displayName == "" {
		displayName = DisplayName(key.Category)
	}
	return &CategoryProfile{
		SchemaVersion:          CurrentSchemaVersion,
		AccountID:              key.AccountID,
		Category:               key.Category,
		DisplayName:            displayName,
		Statements:             []Statement{},
		LearnedConfidence:      DefaultLearnedConfidence,
		CorrectionMagnitudes:   []float64{},
		ComplexityDistribution: map[string]int{},
		AcceptedTotals:         []AcceptedQuote{},
		ProcessedQuotes:        []string{},
	}
}

// Key returns the profile's store key.
func (p *CategoryProfile) Key() Key {
	return Key{AccountID: p.AccountID, Category: p.Category}
}

// TotalSignals is the number of acceptance plus correction signals.
func (p *CategoryProfile) TotalSignals() int {
	return p.AcceptanceCount + p.CorrectionCount
}

// ObservedAccuracy returns the empirical acceptance rate, or 0 without signals.
func (p *CategoryProfile) ObservedAccuracy() float64 {
	total := p.TotalSignals()
	if total == 0 {
		return 0
	}
	return float64(p.AcceptanceCount) / float64(total)
}

// HasProcessed reports whether quoteID was already applied to this profile.
func (p *CategoryProfile) HasProcessed(quoteID string) bool {
	if quoteID == "" {
		return false
	}
	for _, id := range p.ProcessedQuotes {
		if id == quoteID {
			return true
		}
	}
	return false
}

// MarkProcessed remembers quoteID in a bounded window.
func (p *CategoryProfile) MarkProcessed(quoteID string, window int) {
	if quoteID == "" {
		return
	}
	p.ProcessedQuotes = pushBounded(p.ProcessedQuotes, quoteID, window)
}

// PushMagnitude appends a correction magnitude to the bounded window.
func (p *CategoryProfile) PushMagnitude(m float64, window int) {
	p.CorrectionMagnitudes = pushBounded(p.CorrectionMagnitudes, m, window)
}

// PushAccepted appends an accepted total to the bounded audit window.
func (p *CategoryProfile) PushAccepted(q AcceptedQuote, window int) {
	p.AcceptedTotals = pushBounded(p.AcceptedTotals, q, window)
}

// RecordComplexity increments the histogram bucket for tier.
func (p *CategoryProfile) RecordComplexity(tier string) {
	if tier == "" {
		return
	}
	if p.ComplexityDistribution == nil {
		p.ComplexityDistribution = map[string]int{}
	}
	p.ComplexityDistribution[tier]++
}

// FindStatement returns the index of the statement with id, or -1.
func (p *CategoryProfile) FindStatement(id string) int {
	for i := range p.Statements {
		if p.Statements[i].ID == id {
			return i
		}
	}
	return -1
}

// AddStatement appends s and evicts the weakest statements beyond max.
// It returns the ids of evicted statements.
func (p *CategoryProfile) AddStatement(s Statement, max int) []string {
	p.Statements = append(p.Statements, s)
	return p.EnforceCap(max)
}

// EnforceCap drops the weakest statements until at most max remain.
// Weakest is lowest confidence, then fewest samples, then oldest last_seen_at.
func (p *CategoryProfile) EnforceCap(max int) []string {
	if max <= 0 || len(p.Statements) <= max {
		return nil
	}
	order := make([]int, len(p.Statements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := p.Statements[order[a]], p.Statements[order[b]]
		if sa.Confidence != sb.Confidence {
			return sa.Confidence < sb.Confidence
		}
		if sa.SampleCount != sb.SampleCount {
			return sa.SampleCount < sb.SampleCount
		}
		return sa.LastSeenAt.Before(sb.LastSeenAt)
	})

	drop := make(map[int]bool, len(p.Statements)-max)
	evicted := make([]string, 0, len(p.Statements)-max)
	for _, idx := range order[:len(p.Statements)-max] {
		drop[idx] = true
		evicted = append(evicted, p.Statements[idx].ID)
	}

	kept := make([]Statement, 0, max)
	for i, s := range p.Statements {
		if !drop[i] {
			kept = append(kept, s)
		}
	}
	p.Statements = kept
	return evicted
}

// DisplayName converts a category slug like "deck_installation" to "Deck Installation".
func DisplayName(category string) string {
	parts := strings.FieldsFunc(category, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, p := range parts {
		r, n := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[n:]
	}
	return strings.Join(parts, " ")
}

func pushBounded[T any](window []T, v T, max int) []T {
	window = append(window, v)
	if max > 0 && len(window) > max {
		window = append([]T(nil), window[len(window)-max:]...)
	}
	return window
}

// String implements fmt.Stringer for log output.
func (p *CategoryProfile) String() string {
	return fmt.Sprintf("CategoryProfile{%s statements=%d quotes=%d v=%d}",
		p.Key(), len(p.Statements), p.QuoteCount, p.Version)
}
