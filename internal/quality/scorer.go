// Package quality rates how useful a pricing learning statement is,
// independent of any job context.
package quality

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrInvalidRule indicates a rule that cannot be compiled.
var ErrInvalidRule = errors.New("invalid quality rule")

// Tier is the action a score recommends.
type Tier string

const (
	TierReject Tier = "reject"
	TierReview Tier = "review"
	TierRefine Tier = "refine"
	TierAccept Tier = "accept"
)

// Config holds scorer weights and thresholds.
type Config struct {
	SpecificityWeight   float64 `koanf:"specificity_weight"`
	ActionabilityWeight float64 `koanf:"actionability_weight"`
	ClarityWeight       float64 `koanf:"clarity_weight"`
	AntiPatternWeight   float64 `koanf:"anti_pattern_weight"`

	// RejectBelow, ReviewBelow and RefineMax bound the tiers:
	// reject < RejectBelow <= review < ReviewBelow <= refine <= RefineMax < accept.
	RejectBelow float64 `koanf:"reject_below"`
	ReviewBelow float64 `koanf:"review_below"`
	RefineMax   float64 `koanf:"refine_max"`

	ClarityBase        float64 `koanf:"clarity_base"`
	UncertaintyPenalty float64 `koanf:"uncertainty_penalty"`
	ClarityFloor       float64 `koanf:"clarity_floor"`

	AntiPatternPenalty float64 `koanf:"anti_pattern_penalty"`
	MaxPenalty         float64 `koanf:"max_penalty"`

	MinLength int `koanf:"min_length"`
	MaxLength int `koanf:"max_length"`
}

// DefaultConfig returns the standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		SpecificityWeight:   0.25,
		ActionabilityWeight: 0.35,
		ClarityWeight:       0.25,
		AntiPatternWeight:   0.15,
		RejectBelow:         40,
		ReviewBelow:         60,
		RefineMax:           70,
		ClarityBase:         80,
		UncertaintyPenalty:  20,
		ClarityFloor:        20,
		AntiPatternPenalty:  25,
		MaxPenalty:          100,
		MinLength:           20,
		MaxLength:           500,
	}
}

// QualityScore is the breakdown of one statement's score. All scores are 0-100.
type QualityScore struct {
	Overall              float64  `json:"overall"`
	Tier                 Tier     `json:"tier"`
	Specificity          float64  `json:"specificity"`
	Actionability        float64  `json:"actionability"`
	Clarity              float64  `json:"clarity"`
	AntiPatternPenalty   float64  `json:"anti_pattern_penalty"`
	DetectedAntiPatterns []string `json:"detected_anti_patterns,omitempty"`
	Suggestions          []string `json:"suggestions,omitempty"`
}

// Scorer scores statements. It is immutable after construction and safe
// for concurrent use.
type Scorer struct {
	cfg           Config
	specificity   []compiledRule
	actionability []compiledRule
	uncertainty   []compiledRule
	antiPatterns  []compiledRule
}

// NewScorer creates a scorer with the built-in rules.
func NewScorer(cfg Config) *Scorer {
	s, err := NewScorerWithRules(cfg, DefaultRules())
	if err != nil {
		// built-in rules are constant
		panic(err)
	}
	return s
}

// NewScorerWithRules creates a scorer with custom rule tables. An empty
// table falls back to the built-in one.
func NewScorerWithRules(cfg Config, rules Rules) (*Scorer, error) {
	def := DefaultRules()
	if len(rules.Specificity) == 0 {
		rules.Specificity = def.Specificity
	}
	if len(rules.Actionability) == 0 {
		rules.Actionability = def.Actionability
	}
	if len(rules.Uncertainty) == 0 {
		rules.Uncertainty = def.Uncertainty
	}
	if len(rules.AntiPatterns) == 0 {
		rules.AntiPatterns = def.AntiPatterns
	}

	s := &Scorer{cfg: cfg.withDefaults()}
	var err error
	if s.specificity, err = compileRules(rules.Specificity); err != nil {
		return nil, err
	}
	if s.actionability, err = compileRules(rules.Actionability); err != nil {
		return nil, err
	}
	if s.uncertainty, err = compileRules(rules.Uncertainty); err != nil {
		return nil, err
	}
	if s.antiPatterns, err = compileRules(rules.AntiPatterns); err != nil {
		return nil, err
	}
	return s, nil
}

// Score rates text. Empty or whitespace-only text scores 0 and is rejected.
func (s *Scorer) Score(text string) QualityScore {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return QualityScore{
			Tier:        TierReject,
			Suggestions: []string{"Write the pricing rule as a full sentence"},
		}
	}

	qs := QualityScore{
		Specificity:   Graduated(countDistinct(s.specificity, trimmed), 30),
		Actionability: Graduated(countDistinct(s.actionability, trimmed), 30),
		Clarity:       s.clarity(trimmed),
	}
	qs.DetectedAntiPatterns = s.detectAntiPatterns(trimmed)
	qs.AntiPatternPenalty = math.Min(s.cfg.MaxPenalty, float64(len(qs.DetectedAntiPatterns))*s.cfg.AntiPatternPenalty)

	overall := s.cfg.SpecificityWeight*qs.Specificity +
		s.cfg.ActionabilityWeight*qs.Actionability +
		s.cfg.ClarityWeight*qs.Clarity +
		s.cfg.AntiPatternWeight*(100-qs.AntiPatternPenalty)
	qs.Overall = clamp(overall, 0, 100)
	qs.Tier = s.TierFor(qs.Overall)
	qs.Suggestions = suggestions(qs)
	return qs
}

// TierFor maps an overall score to its tier.
func (s *Scorer) TierFor(overall float64) Tier {
	switch {
	case overall < s.cfg.RejectBelow:
		return TierReject
	case overall < s.cfg.ReviewBelow:
		return TierReview
	case overall <= s.cfg.RefineMax:
		return TierRefine
	default:
		return TierAccept
	}
}

func (s *Scorer) clarity(text string) float64 {
	n := countOccurrences(s.uncertainty, text)
	return math.Max(s.cfg.ClarityFloor, s.cfg.ClarityBase-float64(n)*s.cfg.UncertaintyPenalty)
}

func (s *Scorer) detectAntiPatterns(text string) []string {
	var found []string
	for _, r := range s.antiPatterns {
		if r.regex.MatchString(text) {
			found = append(found, r.name)
		}
	}
	n := utf8.RuneCountInString(text)
	if n < s.cfg.MinLength {
		found = append(found, AntiTooShort)
	}
	if n > s.cfg.MaxLength {
		found = append(found, AntiTooLong)
	}
	return found
}

var antiPatternAdvice = map[string]string{
	AntiVagueOpener:   "Lead with the pricing action instead of a hedge",
	AntiSubjective:    "Replace opinions with an observable condition",
	AntiGenericAdvice: "Say what to change and by how much, not just to review pricing",
	AntiKnowledgeGap:  "Only record rules you can state with certainty",
	AntiTooShort:      "Add the condition and the amount so the rule stands alone",
	AntiTooLong:       "Split long guidance into separate rules",
}

func suggestions(qs QualityScore) []string {
	var out []string
	if qs.Specificity < 50 {
		out = append(out, "Include a concrete amount: a dollar figure, percentage or measurement")
	}
	if qs.Actionability < 50 {
		out = append(out, "State the action, e.g. add, increase or charge a minimum")
	}
	if qs.Clarity < 60 {
		out = append(out, "Remove uncertain wording such as maybe or it depends")
	}
	for _, ap := range qs.DetectedAntiPatterns {
		if advice, ok := antiPatternAdvice[ap]; ok {
			out = append(out, advice)
		}
	}
	return out
}

// Graduated converts a signal count to a sub-score: 0 gives zero, 1 gives
// 50, 2 gives 70 and each further signal adds 10 up to 90.
func Graduated(n int, zero float64) float64 {
	switch {
	case n <= 0:
		return zero
	case n == 1:
		return 50
	case n == 2:
		return 70
	default:
		return math.Min(90, 70+10*float64(n-2))
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SpecificityWeight == 0 && c.ActionabilityWeight == 0 && c.ClarityWeight == 0 && c.AntiPatternWeight == 0 {
		c.SpecificityWeight = d.SpecificityWeight
		c.ActionabilityWeight = d.ActionabilityWeight
		c.ClarityWeight = d.ClarityWeight
		c.AntiPatternWeight = d.AntiPatternWeight
	}
	if c.RejectBelow == 0 {
		c.RejectBelow = d.RejectBelow
	}
	if c.ReviewBelow == 0 {
		c.ReviewBelow = d.ReviewBelow
	}
	if c.RefineMax == 0 {
		c.RefineMax = d.RefineMax
	}
	if c.ClarityBase == 0 {
		c.ClarityBase = d.ClarityBase
	}
	if c.UncertaintyPenalty == 0 {
		c.UncertaintyPenalty = d.UncertaintyPenalty
	}
	if c.ClarityFloor == 0 {
		c.ClarityFloor = d.ClarityFloor
	}
	if c.AntiPatternPenalty == 0 {
		c.AntiPatternPenalty = d.AntiPatternPenalty
	}
	if c.MaxPenalty == 0 {
		c.MaxPenalty = d.MaxPenalty
	}
	if c.MinLength == 0 {
		c.MinLength = d.MinLength
	}
	if c.MaxLength == 0 {
		c.MaxLength = d.MaxLength
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
