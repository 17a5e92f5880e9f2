package profile

import (
	"time"
)

// Transferability describes how far a pattern may travel across categories.
type Transferability string

const (
	// TransferUniversal patterns apply to every category.
	TransferUniversal Transferability = "universal"

	// TransferPartial patterns apply within a related category group.
	TransferPartial Transferability = "partial"

	// TransferSpecific patterns never leave their source category.
	TransferSpecific Transferability = "specific"
)

// Pricing style tendencies.
const (
	TendencyBalanced     = "balanced"
	TendencyConservative = "conservative"
	TendencyAggressive   = "aggressive"
)

// TransferablePattern is a learning judged portable across categories.
type TransferablePattern struct {
	PatternType      string          `json:"pattern_type"`
	Statement        string          `json:"statement"`
	SourceCategory   string          `json:"source_category"`
	SourceConfidence float64         `json:"source_confidence"`
	SourceQuoteCount int             `json:"source_quote_count"`
	Keywords         []string        `json:"keywords,omitempty"`
	NumericValue     *float64        `json:"numeric_value,omitempty"`
	Transferability  Transferability `json:"transferability"`
	CreatedAt        time.Time       `json:"created_at"`
	LastValidatedAt  time.Time       `json:"last_validated_at"`
}

// PricingStyle is the account-wide markup tendency derived from corrections.
type PricingStyle struct {
	Tendency   string  `json:"tendency"`
	AvgMarkup  float64 `json:"avg_markup"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
}

// ContractorDNA is the per-account set of transferable patterns.
type ContractorDNA struct {
	SchemaVersion int    `json:"schema_version"`
	AccountID     string `json:"account_id"`

	UniversalPatterns []TransferablePattern `json:"universal_patterns"`
	PartialPatterns   []TransferablePattern `json:"partial_patterns"`

	PricingStyle PricingStyle `json:"pricing_style"`

	Categories       []string `json:"categories"`
	TotalCategories  int      `json:"total_categories"`
	TotalCorrections int      `json:"total_corrections"`
	DNAConfidence    float64  `json:"dna_confidence"`

	// Version is the optimistic concurrency counter owned by the store.
	Version int64 `json:"version"`
}

// NewContractorDNA creates an empty DNA record for accountID.
func NewContractorDNA(accountID string) *ContractorDNA {
	return &ContractorDNA{
		SchemaVersion:     CurrentSchemaVersion,
		AccountID:         accountID,
		UniversalPatterns: []TransferablePattern{},
		PartialPatterns:   []TransferablePattern{},
		PricingStyle:      PricingStyle{Tendency: TendencyBalanced},
		Categories:        []string{},
	}
}

// AddPattern appends p to the list matching its transferability.
// Specific patterns are refused and AddPattern returns false.
func (d *ContractorDNA) AddPattern(p TransferablePattern) bool {
	switch p.Transferability {
	case TransferUniversal:
		d.UniversalPatterns = append(d.UniversalPatterns, p)
	case TransferPartial:
		d.PartialPatterns = append(d.PartialPatterns, p)
	default:
		return false
	}
	return true
}

// FindPattern returns a pointer to the stored pattern with the same
// statement and type, or nil.
func (d *ContractorDNA) FindPattern(statement, patternType string) *TransferablePattern {
	for _, list := range [][]TransferablePattern{d.UniversalPatterns, d.PartialPatterns} {
		for i := range list {
			if list[i].Statement == statement && list[i].PatternType == patternType {
				return &list[i]
			}
		}
	}
	return nil
}

// AllPatterns returns universal then partial patterns.
func (d *ContractorDNA) AllPatterns() []TransferablePattern {
	out := make([]TransferablePattern, 0, len(d.UniversalPatterns)+len(d.PartialPatterns))
	out = append(out, d.UniversalPatterns...)
	return append(out, d.PartialPatterns...)
}

// MarkCategory records that category contributed to the DNA.
func (d *ContractorDNA) MarkCategory(category string) {
	for _, c := range d.Categories {
		if c == category {
			return
		}
	}
	d.Categories = append(d.Categories, category)
	d.TotalCategories = len(d.Categories)
}
