package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// schemaProbe reads only the version marker of a stored record.
type schemaProbe struct {
	SchemaVersion int `json:"schema_version"`
}

// legacyStatement accepts either a bare string or a statement object.
type legacyStatement struct {
	Statement
}

func (l *legacyStatement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		l.Statement = Statement{Text: text, SampleCount: 1}
		return nil
	}
	// Legacy objects used "learning" for the text and "samples" for counts.
	var raw struct {
		Statement
		Learning string `json:"learning"`
		Samples  int    `json:"samples"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Statement = raw.Statement
	if l.Text == "" {
		l.Text = raw.Learning
	}
	if l.SampleCount == 0 {
		l.SampleCount = raw.Samples
	}
	if l.SampleCount == 0 {
		l.SampleCount = 1
	}
	return nil
}

// legacyProfile is the unversioned record layout.
type legacyProfile struct {
	AccountID   string            `json:"account_id"`
	Category    string            `json:"category"`
	DisplayName string            `json:"display_name"`
	Statements  []legacyStatement `json:"statements"`
	Learnings   []legacyStatement `json:"learnings"`

	Confidence        Dimensions `json:"confidence_dimensions"`
	LearnedConfidence *float64   `json:"learned_confidence"`

	QuoteCount      int `json:"quote_count"`
	AcceptanceCount int `json:"acceptance_count"`
	Acceptances     int `json:"acceptances"`
	CorrectionCount int `json:"correction_count"`
	Corrections     int `json:"corrections"`

	CorrectionMagnitudes   []float64       `json:"correction_magnitudes"`
	ComplexityDistribution map[string]int  `json:"complexity_distribution"`
	AcceptedTotals         []AcceptedQuote `json:"accepted_totals"`
	LastQuoteAt            time.Time       `json:"last_quote_at"`
	Version                int64           `json:"version"`
}

// DecodeCategoryProfile decodes a stored profile and migrates it to the
// current schema.
func DecodeCategoryProfile(data []byte) (*CategoryProfile, error) {
	var probe schemaProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding profile schema: %w", err)
	}

	switch {
	case probe.SchemaVersion == CurrentSchemaVersion:
		var p CategoryProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding profile: %w", err)
		}
		p.normalize()
		return &p, nil
	case probe.SchemaVersion == 0:
		return migrateProfileV0(data)
	default:
		return nil, fmt.Errorf("%w: profile schema %d", ErrUnsupportedSchema, probe.SchemaVersion)
	}
}

func migrateProfileV0(data []byte) (*CategoryProfile, error) {
	var legacy legacyProfile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decoding legacy profile: %w", err)
	}

	p := NewCategoryProfile(Key{AccountID: legacy.AccountID, Category: legacy.Category}, legacy.DisplayName)
	items := legacy.Statements
	if len(items) == 0 {
		items = legacy.Learnings
	}
	for _, ls := range items {
		s := ls.Statement
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		if s.Category == "" {
			s.Category = legacy.Category
		}
		if s.Source == "" {
			s.Source = SourceCorrection
		}
		s.Confidence = ClampConfidence(s.Confidence)
		p.Statements = append(p.Statements, s)
	}

	p.Confidence = legacy.Confidence
	if legacy.LearnedConfidence != nil {
		p.LearnedConfidence = ClampConfidence(*legacy.LearnedConfidence)
	}
	p.QuoteCount = legacy.QuoteCount
	p.AcceptanceCount = firstNonZero(legacy.AcceptanceCount, legacy.Acceptances)
	p.CorrectionCount = firstNonZero(legacy.CorrectionCount, legacy.Corrections)
	if p.QuoteCount < p.TotalSignals() {
		p.QuoteCount = p.TotalSignals()
	}
	if legacy.CorrectionMagnitudes != nil {
		p.CorrectionMagnitudes = legacy.CorrectionMagnitudes
	}
	if legacy.ComplexityDistribution != nil {
		p.ComplexityDistribution = legacy.ComplexityDistribution
	}
	if legacy.AcceptedTotals != nil {
		p.AcceptedTotals = legacy.AcceptedTotals
	}
	p.LastQuoteAt = legacy.LastQuoteAt
	p.Version = legacy.Version
	return p, nil
}

// normalize fills nil collections so callers never branch on them.
func (p *CategoryProfile) normalize() {
	if p.Statements == nil {
		p.Statements = []Statement{}
	}
	if p.CorrectionMagnitudes == nil {
		p.CorrectionMagnitudes = []float64{}
	}
	if p.ComplexityDistribution == nil {
		p.ComplexityDistribution = map[string]int{}
	}
	if p.AcceptedTotals == nil {
		p.AcceptedTotals = []AcceptedQuote{}
	}
	if p.ProcessedQuotes == nil {
		p.ProcessedQuotes = []string{}
	}
}

// EncodeCategoryProfile stamps the current schema version and encodes p.
func EncodeCategoryProfile(p *CategoryProfile) ([]byte, error) {
	p.SchemaVersion = CurrentSchemaVersion
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	return data, nil
}

// legacyDNA is the unversioned DNA layout, which kept a single pattern list.
type legacyDNA struct {
	AccountID        string                `json:"account_id"`
	Patterns         []TransferablePattern `json:"patterns"`
	Universal        []TransferablePattern `json:"universal_patterns"`
	Partial          []TransferablePattern `json:"partial_patterns"`
	PricingStyle     PricingStyle          `json:"pricing_style"`
	TotalCategories  int                   `json:"total_categories"`
	TotalCorrections int                   `json:"total_corrections"`
	DNAConfidence    float64               `json:"dna_confidence"`
	Version          int64                 `json:"version"`
}

// DecodeDNA decodes a stored DNA record and migrates it to the current schema.
func DecodeDNA(data []byte) (*ContractorDNA, error) {
	var probe schemaProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding dna schema: %w", err)
	}

	switch {
	case probe.SchemaVersion == CurrentSchemaVersion:
		var d ContractorDNA
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decoding dna: %w", err)
		}
		d.normalize()
		return &d, nil
	case probe.SchemaVersion == 0:
		var legacy legacyDNA
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decoding legacy dna: %w", err)
		}
		d := NewContractorDNA(legacy.AccountID)
		all := append(append(append([]TransferablePattern{}, legacy.Universal...), legacy.Partial...), legacy.Patterns...)
		for _, p := range all {
			// Specific patterns could leak into the flat legacy list; drop them here.
			if d.FindPattern(p.Statement, p.PatternType) == nil {
				d.AddPattern(p)
			}
		}
		d.PricingStyle = legacy.PricingStyle
		if d.PricingStyle.Tendency == "" {
			d.PricingStyle.Tendency = TendencyBalanced
		}
		d.TotalCategories = legacy.TotalCategories
		d.TotalCorrections = legacy.TotalCorrections
		d.DNAConfidence = ClampConfidence(legacy.DNAConfidence)
		d.Version = legacy.Version
		return d, nil
	default:
		return nil, fmt.Errorf("%w: dna schema %d", ErrUnsupportedSchema, probe.SchemaVersion)
	}
}

func (d *ContractorDNA) normalize() {
	if d.UniversalPatterns == nil {
		d.UniversalPatterns = []TransferablePattern{}
	}
	if d.PartialPatterns == nil {
		d.PartialPatterns = []TransferablePattern{}
	}
	if d.Categories == nil {
		d.Categories = []string{}
	}
}

// EncodeDNA stamps the current schema version and encodes d.
func EncodeDNA(d *ContractorDNA) ([]byte, error) {
	d.SchemaVersion = CurrentSchemaVersion
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding dna: %w", err)
	}
	return data, nil
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
