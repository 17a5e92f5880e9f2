// Package dna classifies learning statements by how far they transfer and
// propagates transferable patterns across one account's pricing categories.
package dna

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// PatternPricingPhilosophy is the pattern type of the style hint.
const PatternPricingPhilosophy = "pricing_philosophy"

// Config holds inheritance, style and quality constants.
type Config struct {
	UniversalInheritance float64 `koanf:"universal_inheritance"`
	PartialInheritance   float64 `koanf:"partial_inheritance"`

	LowSampleQuotes  int     `koanf:"low_sample_quotes"`
	LowSampleFactor  float64 `koanf:"low_sample_factor"`
	HighSampleQuotes int     `koanf:"high_sample_quotes"`
	HighSampleFactor float64 `koanf:"high_sample_factor"`
	MinInherited     float64 `koanf:"min_inherited"`
	MaxInherited     float64 `koanf:"max_inherited"`

	AggressiveMarkup     float64 `koanf:"aggressive_markup"`
	ConservativeMarkup   float64 `koanf:"conservative_markup"`
	StyleSamplesForFull  int     `koanf:"style_samples_for_full"`
	StyleHintConfidence  float64 `koanf:"style_hint_confidence"`
	QualityCategoryGoal  int     `koanf:"quality_category_goal"`
	QualityUniversalGoal int     `koanf:"quality_universal_goal"`

	// MinStatementQuality is the quality score a statement needs to feed the DNA.
	MinStatementQuality float64 `koanf:"min_statement_quality"`
}

// DefaultConfig returns the documented constants.
func DefaultConfig() Config {
	return Config{
		UniversalInheritance: 0.6,
		PartialInheritance:   0.4,
		LowSampleQuotes:      3,
		LowSampleFactor:      0.7,
		HighSampleQuotes:     10,
		HighSampleFactor:     1.1,
		MinInherited:         0.30,
		MaxInherited:         0.70,
		AggressiveMarkup:     5,
		ConservativeMarkup:   -5,
		StyleSamplesForFull:  20,
		StyleHintConfidence:  0.6,
		QualityCategoryGoal:  5,
		QualityUniversalGoal: 5,
		MinStatementQuality:  60,
	}
}

// BootstrapLearning is a statement seeded into a new category.
type BootstrapLearning struct {
	Text            string                  `json:"text"`
	Confidence      float64                 `json:"confidence"`
	SourceCategory  string                  `json:"source_category"`
	PatternType     string                  `json:"pattern_type"`
	Transferability profile.Transferability `json:"transferability"`
}

// Engine applies DNA operations. It holds no per-account state.
type Engine struct {
	cfg        Config
	classifier *Classifier
	groups     Groups
	logger     *zap.Logger
}

// NewEngine creates an engine. Nil classifier or groups select the built-ins.
func NewEngine(cfg Config, classifier *Classifier, groups Groups, logger *zap.Logger) *Engine {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if len(groups) == 0 {
		groups = DefaultGroups()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg.withDefaults(), classifier: classifier, groups: groups, logger: logger}
}

// Classifier returns the engine's classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Groups returns the engine's related groups.
func (e *Engine) Groups() Groups {
	return e.groups
}

// MinStatementQuality is the threshold for feeding a statement to the DNA.
func (e *Engine) MinStatementQuality() float64 {
	return e.cfg.MinStatementQuality
}

// Extract turns a statement into a transferable pattern. It returns false
// when the statement is specific to its category.
func (e *Engine) Extract(stmt profile.Statement, category string, quoteCount int, now time.Time) (profile.TransferablePattern, bool) {
	c := e.classifier.Classify(stmt.Text)
	if c.Transferability == profile.TransferSpecific {
		return profile.TransferablePattern{}, false
	}
	return profile.TransferablePattern{
		PatternType:      c.PatternType,
		Statement:        stmt.Text,
		SourceCategory:   category,
		SourceConfidence: profile.ClampConfidence(stmt.Confidence),
		SourceQuoteCount: quoteCount,
		Keywords:         c.Keywords,
		NumericValue:     c.NumericValue,
		Transferability:  c.Transferability,
		CreatedAt:        now,
		LastValidatedAt:  now,
	}, true
}

// Merge adds p to dna, or refreshes the existing pattern with the same
// statement and type. It returns true when a new pattern was stored.
func (e *Engine) Merge(dna *profile.ContractorDNA, p profile.TransferablePattern, now time.Time) bool {
	if existing := dna.FindPattern(p.Statement, p.PatternType); existing != nil {
		existing.LastValidatedAt = now
		existing.SourceConfidence = math.Max(existing.SourceConfidence, profile.ClampConfidence(p.SourceConfidence))
		if p.SourceQuoteCount > existing.SourceQuoteCount {
			existing.SourceQuoteCount = p.SourceQuoteCount
		}
		return false
	}
	p.SourceConfidence = profile.ClampConfidence(p.SourceConfidence)
	if !dna.AddPattern(p) {
		e.logger.Debug("refused specific pattern",
			zap.String("account_id", dna.AccountID),
			zap.String("pattern_type", p.PatternType))
		return false
	}
	return true
}

// InheritedConfidence returns the confidence a pattern carries into
// target, or false when it may not transfer there.
func (e *Engine) InheritedConfidence(p profile.TransferablePattern, target string) (float64, bool) {
	if normalizeCategory(p.SourceCategory) == normalizeCategory(target) {
		return 0, false
	}

	var conf float64
	switch p.Transferability {
	case profile.TransferUniversal:
		conf = p.SourceConfidence * e.cfg.UniversalInheritance
	case profile.TransferPartial:
		if !e.groups.Related(p.SourceCategory, target) {
			return 0, false
		}
		conf = p.SourceConfidence * e.cfg.PartialInheritance
	default:
		return 0, false
	}

	switch {
	case p.SourceQuoteCount < e.cfg.LowSampleQuotes:
		conf *= e.cfg.LowSampleFactor
	case p.SourceQuoteCount > e.cfg.HighSampleQuotes:
		conf *= e.cfg.HighSampleFactor
	}
	return math.Max(e.cfg.MinInherited, math.Min(e.cfg.MaxInherited, conf)), true
}

// RecordStyle folds one signed markup percentage into the pricing style.
func (e *Engine) RecordStyle(dna *profile.ContractorDNA, markupPct float64) {
	s := &dna.PricingStyle
	s.Samples++
	s.AvgMarkup += (markupPct - s.AvgMarkup) / float64(s.Samples)
	switch {
	case s.AvgMarkup >= e.cfg.AggressiveMarkup:
		s.Tendency = profile.TendencyAggressive
	case s.AvgMarkup <= e.cfg.ConservativeMarkup:
		s.Tendency = profile.TendencyConservative
	default:
		s.Tendency = profile.TendencyBalanced
	}
	s.Confidence = math.Min(profile.MaxConfidence, float64(s.Samples)/float64(e.cfg.StyleSamplesForFull))
}

// Bootstrap returns the learnings a brand-new category inherits: every
// universal pattern, related partial patterns, and a style hint once the
// account's tendency is established. Patterns sourced from the target are
// skipped.
func (e *Engine) Bootstrap(dna *profile.ContractorDNA, newCategory string) []BootstrapLearning {
	if dna == nil {
		return nil
	}
	var out []BootstrapLearning
	index := map[string]int{}

	for _, p := range dna.AllPatterns() {
		conf, ok := e.InheritedConfidence(p, newCategory)
		if !ok {
			continue
		}
		if i, dup := index[p.Statement]; dup {
			if conf > out[i].Confidence {
				out[i].Confidence = conf
				out[i].SourceCategory = p.SourceCategory
			}
			continue
		}
		index[p.Statement] = len(out)
		out = append(out, BootstrapLearning{
			Text:            p.Statement,
			Confidence:      conf,
			SourceCategory:  p.SourceCategory,
			PatternType:     p.PatternType,
			Transferability: p.Transferability,
		})
	}

	if hint, ok := e.styleHint(dna.PricingStyle); ok {
		out = append(out, hint)
	}
	return out
}

func (e *Engine) styleHint(s profile.PricingStyle) (BootstrapLearning, bool) {
	if s.Confidence < e.cfg.StyleHintConfidence || s.Tendency == profile.TendencyBalanced || s.Tendency == "" {
		return BootstrapLearning{}, false
	}
	var text string
	switch s.Tendency {
	case profile.TendencyAggressive:
		text = fmt.Sprintf("This contractor usually prices above the first estimate (average markup %+.0f%%); lean toward the upper end of typical ranges.", s.AvgMarkup)
	case profile.TendencyConservative:
		text = fmt.Sprintf("This contractor usually prices below the first estimate (average markup %+.0f%%); lean toward the lower end of typical ranges.", s.AvgMarkup)
	default:
		return BootstrapLearning{}, false
	}
	return BootstrapLearning{
		Text:            text,
		Confidence:      math.Max(e.cfg.MinInherited, math.Min(e.cfg.MaxInherited, s.Confidence*e.cfg.UniversalInheritance)),
		PatternType:     PatternPricingPhilosophy,
		Transferability: profile.TransferUniversal,
	}, true
}

// Quality blends category coverage (40%), universal pattern count (30%)
// and average source confidence (30%) into [0, 1].
func (e *Engine) Quality(dna *profile.ContractorDNA) float64 {
	if dna == nil {
		return 0
	}
	coverage := math.Min(1, float64(len(dna.Categories))/float64(e.cfg.QualityCategoryGoal))
	universal := math.Min(1, float64(len(dna.UniversalPatterns))/float64(e.cfg.QualityUniversalGoal))

	var avg float64
	patterns := dna.AllPatterns()
	if len(patterns) > 0 {
		var sum float64
		for _, p := range patterns {
			sum += p.SourceConfidence
		}
		avg = sum / float64(len(patterns))
	}
	return 0.4*coverage + 0.3*universal + 0.3*avg
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UniversalInheritance == 0 {
		c.UniversalInheritance = d.UniversalInheritance
	}
	if c.PartialInheritance == 0 {
		c.PartialInheritance = d.PartialInheritance
	}
	if c.LowSampleQuotes == 0 {
		c.LowSampleQuotes = d.LowSampleQuotes
	}
	if c.LowSampleFactor == 0 {
		c.LowSampleFactor = d.LowSampleFactor
	}
	if c.HighSampleQuotes == 0 {
		c.HighSampleQuotes = d.HighSampleQuotes
	}
	if c.HighSampleFactor == 0 {
		c.HighSampleFactor = d.HighSampleFactor
	}
	if c.MinInherited == 0 {
		c.MinInherited = d.MinInherited
	}
	if c.MaxInherited == 0 {
		c.MaxInherited = d.MaxInherited
	}
	if c.AggressiveMarkup == 0 {
		c.AggressiveMarkup = d.AggressiveMarkup
	}
	if c.ConservativeMarkup == 0 {
		c.ConservativeMarkup = d.ConservativeMarkup
	}
	if c.StyleSamplesForFull == 0 {
		c.StyleSamplesForFull = d.StyleSamplesForFull
	}
	if c.StyleHintConfidence == 0 {
		c.StyleHintConfidence = d.StyleHintConfidence
	}
	if c.QualityCategoryGoal == 0 {
		c.QualityCategoryGoal = d.QualityCategoryGoal
	}
	if c.QualityUniversalGoal == 0 {
		c.QualityUniversalGoal = d.QualityUniversalGoal
	}
	if c.MinStatementQuality == 0 {
		c.MinStatementQuality = d.MinStatementQuality
	}
	return c
}
