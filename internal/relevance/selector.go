// Package relevance ranks a category's learning statements against the
// description of the job being quoted.
package relevance

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
)

// DefaultK is the number of statements returned when k is not positive.
const DefaultK = 7

// Config holds ranking weights and decay parameters.
type Config struct {
	KeywordWeight      float64 `koanf:"keyword_weight"`
	RecencyWeight      float64 `koanf:"recency_weight"`
	SpecificityWeight  float64 `koanf:"specificity_weight"`
	FoundationalWeight float64 `koanf:"foundational_weight"`

	DefaultK         int     `koanf:"default_k"`
	HalfLifeDays     float64 `koanf:"half_life_days"`
	RecencyFloor     float64 `koanf:"recency_floor"`
	SpecificityScale float64 `koanf:"specificity_scale"`
	MinTermLength    int     `koanf:"min_term_length"`

	// FoundationalMarkers is a regex matched case-insensitively.
	FoundationalMarkers string `koanf:"foundational_markers"`
}

// DefaultConfig returns the standard weights.
func DefaultConfig() Config {
	return Config{
		KeywordWeight:       0.40,
		RecencyWeight:       0.30,
		SpecificityWeight:   0.20,
		FoundationalWeight:  0.10,
		DefaultK:            DefaultK,
		HalfLifeDays:        30,
		RecencyFloor:        10,
		SpecificityScale:    1.2,
		MinTermLength:       3,
		FoundationalMarkers: `\b(?:always|never|minimum|must|every|at\s+least)\b`,
	}
}

// Ranked is one statement with its score breakdown. Scores are 0-100.
type Ranked struct {
	Statement    profile.Statement
	Score        float64
	Keyword      float64
	Recency      float64
	Specificity  float64
	Foundational float64
}

// Selector ranks statements. It is safe for concurrent use.
type Selector struct {
	cfg          Config
	scorer       *quality.Scorer
	foundational *regexp.Regexp
	now          func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock overrides the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates a selector. A nil scorer uses the default scorer.
func NewSelector(cfg Config, scorer *quality.Scorer, opts ...Option) (*Selector, error) {
	cfg = cfg.withDefaults()
	re, err := regexp.Compile(`(?i)` + cfg.FoundationalMarkers)
	if err != nil {
		return nil, err
	}
	if scorer == nil {
		scorer = quality.NewScorer(quality.DefaultConfig())
	}
	s := &Selector{cfg: cfg, scorer: scorer, foundational: re, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select returns the texts of the k most relevant statements for jobText.
func (s *Selector) Select(pool []profile.Statement, jobText string, k int) []string {
	ranked := s.Rank(pool, jobText)
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].Statement.Text
	}
	return out
}

// SelectTexts ranks plain strings without metadata. They are treated as
// legacy statements with a freshly computed quality score.
func (s *Selector) SelectTexts(texts []string, jobText string, k int) []string {
	pool := make([]profile.Statement, 0, len(texts))
	for _, t := range texts {
		pool = append(pool, profile.Statement{Text: t})
	}
	return s.Select(pool, jobText, k)
}

// Rank scores every statement and sorts by composite score, descending.
// Equal scores keep input order.
func (s *Selector) Rank(pool []profile.Statement, jobText string) []Ranked {
	now := s.now()
	jobTerms := terms(jobText, s.cfg.MinTermLength)

	out := make([]Ranked, 0, len(pool))
	for _, st := range pool {
		r := Ranked{
			Statement:    st,
			Keyword:      s.keywordScore(jobTerms, st.Text),
			Recency:      s.RecencyScore(st.AgeDays(now)),
			Specificity:  s.specificityScore(st),
			Foundational: s.foundationalScore(st.Text),
		}
		r.Score = s.cfg.KeywordWeight*r.Keyword +
			s.cfg.RecencyWeight*r.Recency +
			s.cfg.SpecificityWeight*r.Specificity +
			s.cfg.FoundationalWeight*r.Foundational
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// RecencyScore decays from 100 with the configured half-life, floored.
func (s *Selector) RecencyScore(days float64) float64 {
	if days < 0 {
		days = 0
	}
	return math.Max(s.cfg.RecencyFloor, 100*math.Pow(0.5, days/s.cfg.HalfLifeDays))
}

func (s *Selector) keywordScore(jobTerms map[string]struct{}, text string) float64 {
	if len(jobTerms) == 0 {
		return quality.Graduated(0, 20)
	}
	stTerms := terms(text, s.cfg.MinTermLength)
	n := 0
	for t := range jobTerms {
		if _, ok := stTerms[t]; ok {
			n++
		}
	}
	return quality.Graduated(n, 20)
}

func (s *Selector) specificityScore(st profile.Statement) float64 {
	q := st.QualityScore
	if q <= 0 {
		q = s.scorer.Score(st.Text).Overall
	}
	return math.Min(100, q*s.cfg.SpecificityScale)
}

func (s *Selector) foundationalScore(text string) float64 {
	if s.foundational.MatchString(text) {
		return 100
	}
	return 50
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.KeywordWeight == 0 && c.RecencyWeight == 0 && c.SpecificityWeight == 0 && c.FoundationalWeight == 0 {
		c.KeywordWeight = d.KeywordWeight
		c.RecencyWeight = d.RecencyWeight
		c.SpecificityWeight = d.SpecificityWeight
		c.FoundationalWeight = d.FoundationalWeight
	}
	if c.DefaultK <= 0 {
		c.DefaultK = d.DefaultK
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = d.HalfLifeDays
	}
	if c.RecencyFloor == 0 {
		c.RecencyFloor = d.RecencyFloor
	}
	if c.SpecificityScale == 0 {
		c.SpecificityScale = d.SpecificityScale
	}
	if c.MinTermLength <= 0 {
		c.MinTermLength = d.MinTermLength
	}
	if c.FoundationalMarkers == "" {
		c.FoundationalMarkers = d.FoundationalMarkers
	}
	return c
}
