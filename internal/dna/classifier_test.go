package dna

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

func TestClassify(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		name     string
		text     string
		wantType string
		want     profile.Transferability
	}{
		{"access difficulty", "Increase price by 15% for second-story access", "access_difficulty", profile.TransferUniversal},
		{"relationship", "Give repeat customers a 5% discount", "relationship_discount", profile.TransferUniversal},
		{"rush", "Add 20% for rush jobs", "rush_premium", profile.TransferUniversal},
		{"seasonal", "Winter work costs 10% more", "seasonal", profile.TransferUniversal},
		{"permit", "Include permit fees in every quote", "permit_handling", profile.TransferUniversal},
		{"quality", "Premium finishes get a 12% uplift", "quality_preference", profile.TransferPartial},
		{"minimum", "Charge at least $400 on any job", "minimum_pricing", profile.TransferPartial},
		{"material", "Mark up materials by 18%", "material_markup", profile.TransferPartial},
		{"unmatched defaults to partial", "Round totals to the nearest ten", PatternGeneral, profile.TransferPartial},
		{"dollar per unit", "Charge $45 per linear foot", "dollar_per_unit", profile.TransferSpecific},
		{"unit pricing", "Price railing per post", "unit_pricing", profile.TransferSpecific},
		{"category material overrides family", "Composite decking on steep lots costs more", "access_difficulty", profile.TransferSpecific},
		{"dollar per sqft overrides universal", "Rush jobs are $12/sqft", "rush_premium", profile.TransferSpecific},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			assert.Equal(t, tt.wantType, got.PatternType)
			assert.Equal(t, tt.want, got.Transferability)
		})
	}
}

func TestClassify_KeywordsAndNumbers(t *testing.T) {
	c := DefaultClassifier()

	got := c.Classify("Add 15% for steep access")
	assert.Equal(t, []string{"steep", "access"}, got.Keywords)
	require.NotNil(t, got.NumericValue)
	assert.Equal(t, 15.0, *got.NumericValue)

	got = c.Classify("Minimum charge of $1,250")
	require.NotNil(t, got.NumericValue)
	assert.Equal(t, 1250.0, *got.NumericValue)

	assert.Nil(t, c.Classify("Round totals up").NumericValue)
}

func TestNewClassifier_Invalid(t *testing.T) {
	_, err := NewClassifier([]Rule{{Name: "x", Pattern: "(", Transferability: profile.TransferPartial}})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewClassifier([]Rule{{Name: "x", Pattern: "a", Transferability: "global"}})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestGroups(t *testing.T) {
	g := DefaultGroups()

	assert.Equal(t, []string{"outdoor_structures"}, g.GroupsOf("deck_installation"))
	assert.Equal(t, []string{"coatings"}, g.GroupsOf("Painting Interior"))
	assert.Empty(t, g.GroupsOf("plumbing"))

	assert.True(t, g.Related("deck", "fence"))
	assert.True(t, g.Related("deck_installation", "patio-cover"))
	assert.False(t, g.Related("deck", "painting_interior"))
	assert.False(t, g.Related("deck", "deck"))
	assert.False(t, g.Related("plumbing", "electrical"))
}
