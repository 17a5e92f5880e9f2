package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := NewSelector(DefaultConfig(), nil, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return s
}

func aged(text string, days int) profile.Statement {
	created := testNow.Add(-time.Duration(days) * 24 * time.Hour)
	return profile.Statement{ID: text, Text: text, CreatedAt: created, LastSeenAt: created}
}

func TestRecencyScore_HalfLife(t *testing.T) {
	s := newTestSelector(t)
	assert.InDelta(t, 100.0, s.RecencyScore(0), 1e-9)
	assert.InDelta(t, 50.0, s.RecencyScore(30), 1e-9)
	assert.InDelta(t, 0.5, s.RecencyScore(30)/s.RecencyScore(0), 1e-9)
	assert.Equal(t, 10.0, s.RecencyScore(3650))
}

func TestRank_RecencyDimension(t *testing.T) {
	s := newTestSelector(t)
	ranked := s.Rank([]profile.Statement{aged("fresh rule", 0), aged("older rule", 30)}, "")

	require.Len(t, ranked, 2)
	assert.InDelta(t, 100.0, ranked[0].Recency, 1e-6)
	assert.InDelta(t, 50.0, ranked[1].Recency, 1e-6)
}

func TestRank_FoundationalAndNumberOutrank(t *testing.T) {
	s := newTestSelector(t)
	pool := []profile.Statement{
		aged("Charge extra for hauling debris", 10),
		aged("Always charge 15% extra for hauling debris", 10),
	}

	ranked := s.Rank(pool, "Replace a backyard pergola")
	require.Len(t, ranked, 2)
	assert.Equal(t, "Always charge 15% extra for hauling debris", ranked[0].Statement.Text)
	assert.Equal(t, 100.0, ranked[0].Foundational)
	assert.Equal(t, 50.0, ranked[1].Foundational)
}

func TestRank_KeywordGraduation(t *testing.T) {
	s := newTestSelector(t)
	job := "Build a 400 sqft cedar deck with railing on a second story"

	tests := []struct {
		text string
		want float64
	}{
		{"Offer repeat customers a discount", 20},
		{"Cedar costs more this season", 50},
		{"Cedar railing adds labor", 70},
		{"Cedar railing on second floor decks", 80},
		{"Cedar railing on second story deck over 400 sqft", 90},
	}
	for _, tt := range tests {
		ranked := s.Rank([]profile.Statement{aged(tt.text, 0)}, job)
		assert.Equal(t, tt.want, ranked[0].Keyword, tt.text)
	}
}

func TestRank_SpecificityUsesStoredOrFreshQuality(t *testing.T) {
	s := newTestSelector(t)

	stored := aged("anything", 0)
	stored.QualityScore = 90
	ranked := s.Rank([]profile.Statement{stored}, "")
	assert.Equal(t, 100.0, ranked[0].Specificity)

	fresh := aged("Increase deck railing price by 15% for second-story access", 0)
	ranked = s.Rank([]profile.Statement{fresh}, "")
	assert.InDelta(t, 72.5*1.2, ranked[0].Specificity, 1e-9)
}

func TestRank_StableForTies(t *testing.T) {
	s := newTestSelector(t)
	pool := []profile.Statement{aged("same text", 3), aged("same text", 3), aged("same text", 3)}
	pool[0].ID, pool[1].ID, pool[2].ID = "1", "2", "3"

	ranked := s.Rank(pool, "")
	assert.Equal(t, "1", ranked[0].Statement.ID)
	assert.Equal(t, "2", ranked[1].Statement.ID)
	assert.Equal(t, "3", ranked[2].Statement.ID)
}

func TestSelect_TopK(t *testing.T) {
	s := newTestSelector(t)
	var pool []profile.Statement
	for i := 0; i < 10; i++ {
		pool = append(pool, aged("rule", i))
	}

	assert.Len(t, s.Select(pool, "", 0), DefaultK)
	assert.Len(t, s.Select(pool, "", 3), 3)
	assert.Len(t, s.Select(pool[:2], "", 5), 2)
	assert.Empty(t, s.Select(nil, "deck", 5))
}

func TestSelectTexts_Legacy(t *testing.T) {
	s := newTestSelector(t)
	out := s.SelectTexts([]string{
		"maybe look at it",
		"Always add a $250 minimum for deck repairs",
	}, "deck repair", 1)

	require.Len(t, out, 1)
	assert.Equal(t, "Always add a $250 minimum for deck repairs", out[0])
}

func TestNewSelector_InvalidMarkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FoundationalMarkers = "("
	_, err := NewSelector(cfg, nil)
	assert.Error(t, err)
}
