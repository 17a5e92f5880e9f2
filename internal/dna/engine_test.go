package dna

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

var testNow = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func pattern(stmt, typ, source string, tr profile.Transferability, conf float64, quotes int) profile.TransferablePattern {
	return profile.TransferablePattern{
		PatternType:      typ,
		Statement:        stmt,
		SourceCategory:   source,
		SourceConfidence: conf,
		SourceQuoteCount: quotes,
		Transferability:  tr,
		CreatedAt:        testNow,
		LastValidatedAt:  testNow,
	}
}

func TestInheritedConfidence(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	tests := []struct {
		name   string
		p      profile.TransferablePattern
		target string
		want   float64
		ok     bool
	}{
		{"universal any category", pattern("s", "rush_premium", "deck", profile.TransferUniversal, 0.8, 5), "plumbing", 0.48, true},
		{"universal low sample", pattern("s", "rush_premium", "deck", profile.TransferUniversal, 0.8, 2), "plumbing", 0.336, true},
		{"universal high sample", pattern("s", "rush_premium", "deck", profile.TransferUniversal, 0.9, 11), "plumbing", 0.594, true},
		{"clamped low", pattern("s", "rush_premium", "deck", profile.TransferUniversal, 0.2, 5), "plumbing", 0.30, true},
		{"max source confidence", pattern("s", "rush_premium", "deck", profile.TransferUniversal, 0.95, 50), "plumbing", 0.627, true},
		{"partial related", pattern("s", "material_markup", "deck", profile.TransferPartial, 0.9, 5), "fence", 0.36, true},
		{"partial unrelated", pattern("s", "material_markup", "deck", profile.TransferPartial, 0.9, 5), "painting_interior", 0, false},
		{"specific never", pattern("s", "unit_pricing", "deck", profile.TransferSpecific, 0.9, 5), "fence", 0, false},
		{"same category", pattern("s", "rush_premium", "deck", profile.TransferUniversal, 0.9, 5), "deck", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.InheritedConfidence(tt.p, tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestInheritedConfidence_AlwaysWithinBounds(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	for _, conf := range []float64{0, 0.1, 0.5, 0.95} {
		for _, quotes := range []int{0, 3, 10, 100} {
			for _, tr := range []profile.Transferability{profile.TransferUniversal, profile.TransferPartial} {
				got, ok := e.InheritedConfidence(pattern("s", "t", "deck", tr, conf, quotes), "fence")
				require.True(t, ok)
				assert.GreaterOrEqual(t, got, 0.30)
				assert.LessOrEqual(t, got, 0.70)
			}
		}
	}
}

func TestExtract_SpecificNeverStored(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	dna := profile.NewContractorDNA("acct")

	texts := []string{
		"Charge $45 per linear foot for cedar fence",
		"Add 20% for rush jobs",
		"Mark up materials by 18%",
		"Price posts per post",
		"Composite decking adds 10% for steep access",
	}
	for _, text := range texts {
		stmt := profile.Statement{Text: text, Confidence: 0.6}
		if p, ok := e.Extract(stmt, "fence", 8, testNow); ok {
			e.Merge(dna, p, testNow)
		}
	}

	for _, p := range dna.AllPatterns() {
		assert.NotEqual(t, profile.TransferSpecific, p.Transferability, p.Statement)
	}
	assert.Len(t, dna.UniversalPatterns, 1)
	assert.Len(t, dna.PartialPatterns, 1)
}

func TestMerge_DedupsOnStatementAndType(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	dna := profile.NewContractorDNA("acct")

	p := pattern("Add 20% for rush jobs", "rush_premium", "deck", profile.TransferUniversal, 0.5, 4)
	assert.True(t, e.Merge(dna, p, testNow))

	later := testNow.Add(24 * time.Hour)
	p.SourceConfidence = 0.7
	p.SourceQuoteCount = 9
	assert.False(t, e.Merge(dna, p, later))

	require.Len(t, dna.UniversalPatterns, 1)
	stored := dna.UniversalPatterns[0]
	assert.Equal(t, later, stored.LastValidatedAt)
	assert.Equal(t, testNow, stored.CreatedAt)
	assert.Equal(t, 0.7, stored.SourceConfidence)
	assert.Equal(t, 9, stored.SourceQuoteCount)

	other := pattern("Add 20% for rush jobs", "seasonal", "deck", profile.TransferUniversal, 0.5, 4)
	assert.True(t, e.Merge(dna, other, testNow))
	assert.Len(t, dna.UniversalPatterns, 2)

	assert.False(t, e.Merge(dna, pattern("x", "unit_pricing", "deck", profile.TransferSpecific, 0.5, 4), testNow))
}

func TestRecordStyle(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	dna := profile.NewContractorDNA("acct")

	e.RecordStyle(dna, 10)
	e.RecordStyle(dna, 4)
	assert.InDelta(t, 7.0, dna.PricingStyle.AvgMarkup, 1e-9)
	assert.Equal(t, profile.TendencyAggressive, dna.PricingStyle.Tendency)
	assert.InDelta(t, 0.1, dna.PricingStyle.Confidence, 1e-9)

	e.RecordStyle(dna, -30)
	assert.InDelta(t, -16.0/3, dna.PricingStyle.AvgMarkup, 1e-9)
	assert.Equal(t, profile.TendencyConservative, dna.PricingStyle.Tendency)

	e.RecordStyle(dna, 16)
	assert.InDelta(t, 0.0, dna.PricingStyle.AvgMarkup, 1e-9)
	assert.Equal(t, profile.TendencyBalanced, dna.PricingStyle.Tendency)

	for i := 0; i < 30; i++ {
		e.RecordStyle(dna, 0)
	}
	assert.Equal(t, 0.95, dna.PricingStyle.Confidence)
}

func TestBootstrap(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	dna := profile.NewContractorDNA("acct")
	dna.UniversalPatterns = []profile.TransferablePattern{
		pattern("Add 20% for rush jobs", "rush_premium", "deck", profile.TransferUniversal, 0.8, 5),
		pattern("Include permit fees", "permit_handling", "fence", profile.TransferUniversal, 0.6, 12),
	}
	dna.PartialPatterns = []profile.TransferablePattern{
		pattern("Mark up materials by 18%", "material_markup", "deck", profile.TransferPartial, 0.9, 5),
		pattern("Premium stain adds 10%", "quality_preference", "staining", profile.TransferPartial, 0.9, 5),
	}

	got := e.Bootstrap(dna, "pergola")
	require.Len(t, got, 3)
	assert.Equal(t, "Add 20% for rush jobs", got[0].Text)
	assert.InDelta(t, 0.48, got[0].Confidence, 1e-9)
	assert.Equal(t, "Include permit fees", got[1].Text)
	assert.InDelta(t, 0.396, got[1].Confidence, 1e-9)
	assert.Equal(t, "Mark up materials by 18%", got[2].Text)

	got = e.Bootstrap(dna, "painting_interior")
	require.Len(t, got, 3)
	assert.Equal(t, "Premium stain adds 10%", got[2].Text)

	// patterns sourced from the target are skipped
	got = e.Bootstrap(dna, "fence")
	texts := make([]string, 0, len(got))
	for _, b := range got {
		texts = append(texts, b.Text)
	}
	assert.NotContains(t, texts, "Include permit fees")
	assert.Contains(t, texts, "Mark up materials by 18%")
}

func TestBootstrap_StyleHint(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	dna := profile.NewContractorDNA("acct")
	dna.PricingStyle = profile.PricingStyle{Tendency: profile.TendencyAggressive, AvgMarkup: 8, Confidence: 0.5, Samples: 10}

	assert.Empty(t, e.Bootstrap(dna, "roofing"), "style not yet established")

	dna.PricingStyle.Confidence = 0.6
	got := e.Bootstrap(dna, "roofing")
	require.Len(t, got, 1)
	assert.Equal(t, PatternPricingPhilosophy, got[0].PatternType)
	assert.Contains(t, got[0].Text, "above")
	assert.Contains(t, got[0].Text, "+8%")

	dna.PricingStyle.Tendency = profile.TendencyBalanced
	assert.Empty(t, e.Bootstrap(dna, "roofing"))
}

func TestQuality(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	assert.Equal(t, 0.0, e.Quality(profile.NewContractorDNA("acct")))

	dna := profile.NewContractorDNA("acct")
	for _, c := range []string{"deck", "fence"} {
		dna.MarkCategory(c)
	}
	dna.UniversalPatterns = []profile.TransferablePattern{
		pattern("a", "rush_premium", "deck", profile.TransferUniversal, 0.8, 5),
	}
	dna.PartialPatterns = []profile.TransferablePattern{
		pattern("b", "material_markup", "deck", profile.TransferPartial, 0.4, 5),
	}
	// 0.4*(2/5) + 0.3*(1/5) + 0.3*0.6
	assert.InDelta(t, 0.16+0.06+0.18, e.Quality(dna), 1e-9)
}
