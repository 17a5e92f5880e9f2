package confidence

import (
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// Tier is the display band of a composite score.
type Tier string

const (
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierLearning Tier = "learning"
)

// Complexity tiers tracked by the coverage dimension.
const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// Config holds every heuristic constant of the calculator.
type Config struct {
	DataWeight     float64 `koanf:"data_weight"`
	AccuracyWeight float64 `koanf:"accuracy_weight"`
	RecencyWeight  float64 `koanf:"recency_weight"`
	CoverageWeight float64 `koanf:"coverage_weight"`

	// DataLogBase is the base of the volume logarithm. Below MinQuotes
	// quotes the composite is Baseline.
	DataLogBase float64 `koanf:"data_log_base"`
	MinQuotes   int     `koanf:"min_quotes"`
	Baseline    float64 `koanf:"baseline"`

	MinAccuracySignals int     `koanf:"min_accuracy_signals"`
	AccuracyFallback   float64 `koanf:"accuracy_fallback"`
	MinMagnitudeFactor float64 `koanf:"min_magnitude_factor"`

	HalfLifeDays float64 `koanf:"half_life_days"`
	RecencyFloor float64 `koanf:"recency_floor"`

	MinCoverageJobs  int      `koanf:"min_coverage_jobs"`
	CoverageFallback float64  `koanf:"coverage_fallback"`
	ComplexityTiers  []string `koanf:"complexity_tiers"`

	HighThreshold   float64 `koanf:"high_threshold"`
	MediumThreshold float64 `koanf:"medium_threshold"`
	LowThreshold    float64 `koanf:"low_threshold"`

	StaleDays            float64 `koanf:"stale_days"`
	AgingDays            float64 `koanf:"aging_days"`
	MinComplexShare      float64 `koanf:"min_complex_share"`
	HighCorrectionRate   float64 `koanf:"high_correction_rate"`
	MinCorrectionSignals int     `koanf:"min_correction_signals"`
	LowVolumeQuotes      int     `koanf:"low_volume_quotes"`

	// CalibrationMargin is how far confidence may exceed observed accuracy.
	CalibrationMargin     float64 `koanf:"calibration_margin"`
	MinCalibrationSignals int     `koanf:"min_calibration_signals"`

	AggressiveRate       float64 `koanf:"aggressive_rate"`
	BalancedRate         float64 `koanf:"balanced_rate"`
	ConservativeRate     float64 `koanf:"conservative_rate"`
	AggressiveBelow      int     `koanf:"aggressive_below"`
	BalancedThrough      int     `koanf:"balanced_through"`
	AcceptanceBoost      float64 `koanf:"acceptance_boost"`
	InitialStatementConf float64 `koanf:"initial_statement_confidence"`
}

// DefaultConfig returns the documented constants.
func DefaultConfig() Config {
	return Config{
		DataWeight:            0.20,
		AccuracyWeight:        0.40,
		RecencyWeight:         0.25,
		CoverageWeight:        0.15,
		DataLogBase:           1.15,
		MinQuotes:             3,
		Baseline:              0.35,
		MinAccuracySignals:    3,
		AccuracyFallback:      0.3,
		MinMagnitudeFactor:    0.5,
		HalfLifeDays:          30,
		RecencyFloor:          0.10,
		MinCoverageJobs:       5,
		CoverageFallback:      0.3,
		ComplexityTiers:       []string{ComplexitySimple, ComplexityMedium, ComplexityComplex},
		HighThreshold:         0.75,
		MediumThreshold:       0.50,
		LowThreshold:          0.25,
		StaleDays:             90,
		AgingDays:             45,
		MinComplexShare:       0.15,
		HighCorrectionRate:    0.60,
		MinCorrectionSignals:  10,
		LowVolumeQuotes:       5,
		CalibrationMargin:     0.15,
		MinCalibrationSignals: 5,
		AggressiveRate:        0.04,
		BalancedRate:          0.02,
		ConservativeRate:      0.01,
		AggressiveBelow:       5,
		BalancedThrough:       15,
		AcceptanceBoost:       0.05,
		InitialStatementConf:  0.50,
	}
}

// Input is the per-category history the calculator reads.
type Input struct {
	QuoteCount             int            `json:"quote_count"`
	AcceptanceCount        int            `json:"acceptance_count"`
	CorrectionCount        int            `json:"correction_count"`
	CorrectionMagnitudes   []float64      `json:"correction_magnitudes"`
	DaysSinceLastQuote     float64        `json:"days_since_last_quote"`
	ComplexityDistribution map[string]int `json:"complexity_distribution"`
}

// PricingConfidence is the calculator output. Dimensions are in [0, 1];
// Overall is clamped to [0, 0.95].
type PricingConfidence struct {
	Data       float64  `json:"data"`
	Accuracy   float64  `json:"accuracy"`
	Recency    float64  `json:"recency"`
	Coverage   float64  `json:"coverage"`
	Overall    float64  `json:"overall"`
	Tier       Tier     `json:"tier"`
	Warnings   []string `json:"warnings,omitempty"`
	QuoteCount int      `json:"quote_count"`
	// Baseline is set when too few quotes exist and Overall is the fixed baseline.
	Baseline bool `json:"baseline,omitempty"`
	// Calibrated is set when Overall was capped at the observed acceptance
	// rate plus the calibration margin.
	Calibrated bool `json:"calibrated,omitempty"`
}

// Dimensions converts the result to the stored record form.
func (pc PricingConfidence) Dimensions() profile.Dimensions {
	return profile.Dimensions{
		Data:     pc.Data,
		Accuracy: pc.Accuracy,
		Recency:  pc.Recency,
		Coverage: pc.Coverage,
		Overall:  pc.Overall,
	}
}

// Calculator computes confidence. It holds no state besides its config.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator. Zero fields take their defaults.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Compute derives all dimensions, the composite, the tier and warnings.
// Once enough signals exist the composite never claims more than the
// observed acceptance rate plus the calibration margin.
func (c *Calculator) Compute(in Input) PricingConfidence {
	pc := PricingConfidence{
		Data:       c.DataScore(in.QuoteCount),
		Accuracy:   c.AccuracyScore(in.AcceptanceCount, in.CorrectionCount, in.CorrectionMagnitudes),
		Recency:    c.RecencyScore(in.DaysSinceLastQuote),
		Coverage:   c.CoverageScore(in.ComplexityDistribution),
		QuoteCount: in.QuoteCount,
	}

	if in.QuoteCount < c.cfg.MinQuotes {
		pc.Overall = c.cfg.Baseline
		pc.Baseline = true
	} else {
		pc.Overall = c.cfg.DataWeight*pc.Data +
			c.cfg.AccuracyWeight*pc.Accuracy +
			c.cfg.RecencyWeight*pc.Recency +
			c.cfg.CoverageWeight*pc.Coverage
		if capped := c.Calibrate(pc.Overall, in.AcceptanceCount, in.CorrectionCount); capped < profile.ClampConfidence(pc.Overall) {
			pc.Overall = capped
			pc.Calibrated = true
		}
	}
	pc.Overall = profile.ClampConfidence(pc.Overall)
	pc.Tier = c.TierFor(pc.Overall)
	pc.Warnings = c.warnings(in)
	return pc
}

// DataScore is min(0.95, log_base(n+1)/100).
func (c *Calculator) DataScore(quoteCount int) float64 {
	if quoteCount <= 0 {
		return 0
	}
	v := math.Log(float64(quoteCount)+1) / math.Log(c.cfg.DataLogBase) / 100
	return math.Min(profile.MaxConfidence, v)
}

// AccuracyScore is the acceptance rate discounted by the average
// correction magnitude, floored at MinMagnitudeFactor.
func (c *Calculator) AccuracyScore(acceptances, corrections int, magnitudes []float64) float64 {
	total := acceptances + corrections
	if total < c.cfg.MinAccuracySignals {
		return c.cfg.AccuracyFallback
	}
	rate := float64(acceptances) / float64(total)

	factor := 1.0
	if len(magnitudes) > 0 {
		var sum float64
		for _, m := range magnitudes {
			sum += math.Abs(m)
		}
		factor = math.Max(c.cfg.MinMagnitudeFactor, 1-(sum/float64(len(magnitudes)))/100)
	}
	return rate * factor
}

// RecencyScore decays with the configured half-life, floored.
func (c *Calculator) RecencyScore(days float64) float64 {
	if days < 0 {
		days = 0
	}
	return math.Max(c.cfg.RecencyFloor, math.Pow(0.5, days/c.cfg.HalfLifeDays))
}

// CoverageScore is the Shannon entropy of the complexity histogram over
// the configured tiers, normalized by log2 of the tier count.
func (c *Calculator) CoverageScore(dist map[string]int) float64 {
	total := 0
	for _, tier := range c.cfg.ComplexityTiers {
		total += dist[tier]
	}
	if total < c.cfg.MinCoverageJobs || len(c.cfg.ComplexityTiers) < 2 {
		return c.cfg.CoverageFallback
	}

	var entropy float64
	for _, tier := range c.cfg.ComplexityTiers {
		n := dist[tier]
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(float64(len(c.cfg.ComplexityTiers)))
}

// TierFor maps a composite score to its display band.
func (c *Calculator) TierFor(overall float64) Tier {
	switch {
	case overall >= c.cfg.HighThreshold:
		return TierHigh
	case overall >= c.cfg.MediumThreshold:
		return TierMedium
	case overall >= c.cfg.LowThreshold:
		return TierLow
	default:
		return TierLearning
	}
}

func (c *Calculator) warnings(in Input) []string {
	var out []string

	switch {
	case in.DaysSinceLastQuote > c.cfg.StaleDays:
		out = append(out, fmt.Sprintf("Pricing data is stale: last quote was %.0f days ago", in.DaysSinceLastQuote))
	case in.DaysSinceLastQuote > c.cfg.AgingDays:
		out = append(out, fmt.Sprintf("Pricing data is aging: last quote was %.0f days ago", in.DaysSinceLastQuote))
	}

	jobs := 0
	for _, n := range in.ComplexityDistribution {
		jobs += n
	}
	if jobs >= c.cfg.MinCoverageJobs {
		share := float64(in.ComplexityDistribution[ComplexityComplex]) / float64(jobs)
		if share < c.cfg.MinComplexShare {
			out = append(out, fmt.Sprintf("Only %.0f%% of jobs were complex; complex pricing is less reliable", share*100))
		}
	}

	signals := in.AcceptanceCount + in.CorrectionCount
	if signals >= c.cfg.MinCorrectionSignals {
		rate := float64(in.CorrectionCount) / float64(signals)
		if rate > c.cfg.HighCorrectionRate {
			out = append(out, fmt.Sprintf("High correction rate: %.0f%% of quotes were edited", rate*100))
		}
	}

	if in.QuoteCount < c.cfg.LowVolumeQuotes {
		out = append(out, fmt.Sprintf("Low volume: only %d quotes in this category", in.QuoteCount))
	}
	return out
}

// Calibrate caps current at observed accuracy plus the calibration margin
// once enough signals exist. The result is always clamped to [0, 0.95].
func (c *Calculator) Calibrate(current float64, acceptances, corrections int) float64 {
	total := acceptances + corrections
	if total >= c.cfg.MinCalibrationSignals {
		observed := float64(acceptances) / float64(total)
		ceiling := math.Min(profile.MaxConfidence, observed+c.cfg.CalibrationMargin)
		current = math.Min(current, ceiling)
	}
	return profile.ClampConfidence(current)
}

// LearningRate is the confidence increment for a reinforcing correction,
// shrinking as corrections accumulate.
func (c *Calculator) LearningRate(corrections int) float64 {
	switch {
	case corrections < c.cfg.AggressiveBelow:
		return c.cfg.AggressiveRate
	case corrections <= c.cfg.BalancedThrough:
		return c.cfg.BalancedRate
	default:
		return c.cfg.ConservativeRate
	}
}

// AcceptanceBoost is the flat increment applied before calibration on an
// accepted quote.
func (c *Calculator) AcceptanceBoost() float64 {
	return c.cfg.AcceptanceBoost
}

// InitialStatementConfidence is the confidence of a newly learned statement.
func (c *Calculator) InitialStatementConfidence() float64 {
	return c.cfg.InitialStatementConf
}

// FromProfile builds calculator input from a stored profile.
func FromProfile(p *profile.CategoryProfile, now time.Time) Input {
	in := Input{
		QuoteCount:             p.QuoteCount,
		AcceptanceCount:        p.AcceptanceCount,
		CorrectionCount:        p.CorrectionCount,
		CorrectionMagnitudes:   append([]float64(nil), p.CorrectionMagnitudes...),
		ComplexityDistribution: make(map[string]int, len(p.ComplexityDistribution)),
	}
	for k, v := range p.ComplexityDistribution {
		in.ComplexityDistribution[k] = v
	}
	if !p.LastQuoteAt.IsZero() {
		if d := now.Sub(p.LastQuoteAt).Hours() / 24; d > 0 {
			in.DaysSinceLastQuote = d
		}
	}
	return in
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DataWeight == 0 && c.AccuracyWeight == 0 && c.RecencyWeight == 0 && c.CoverageWeight == 0 {
		c.DataWeight, c.AccuracyWeight, c.RecencyWeight, c.CoverageWeight =
			d.DataWeight, d.AccuracyWeight, d.RecencyWeight, d.CoverageWeight
	}
	setF := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setI := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setF(&c.DataLogBase, d.DataLogBase)
	setI(&c.MinQuotes, d.MinQuotes)
	setF(&c.Baseline, d.Baseline)
	setI(&c.MinAccuracySignals, d.MinAccuracySignals)
	setF(&c.AccuracyFallback, d.AccuracyFallback)
	setF(&c.MinMagnitudeFactor, d.MinMagnitudeFactor)
	setF(&c.HalfLifeDays, d.HalfLifeDays)
	setF(&c.RecencyFloor, d.RecencyFloor)
	setI(&c.MinCoverageJobs, d.MinCoverageJobs)
	setF(&c.CoverageFallback, d.CoverageFallback)
	if len(c.ComplexityTiers) == 0 {
		c.ComplexityTiers = d.ComplexityTiers
	}
	setF(&c.HighThreshold, d.HighThreshold)
	setF(&c.MediumThreshold, d.MediumThreshold)
	setF(&c.LowThreshold, d.LowThreshold)
	setF(&c.StaleDays, d.StaleDays)
	setF(&c.AgingDays, d.AgingDays)
	setF(&c.MinComplexShare, d.MinComplexShare)
	setF(&c.HighCorrectionRate, d.HighCorrectionRate)
	setI(&c.MinCorrectionSignals, d.MinCorrectionSignals)
	setI(&c.LowVolumeQuotes, d.LowVolumeQuotes)
	setF(&c.CalibrationMargin, d.CalibrationMargin)
	setI(&c.MinCalibrationSignals, d.MinCalibrationSignals)
	setF(&c.AggressiveRate, d.AggressiveRate)
	setF(&c.BalancedRate, d.BalancedRate)
	setF(&c.ConservativeRate, d.ConservativeRate)
	setI(&c.AggressiveBelow, d.AggressiveBelow)
	setI(&c.BalancedThrough, d.BalancedThrough)
	setF(&c.AcceptanceBoost, d.AcceptanceBoost)
	setF(&c.InitialStatementConf, d.InitialStatementConf)
	return c
}
