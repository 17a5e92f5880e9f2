package dna

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// ErrInvalidRule indicates a classifier rule that cannot be compiled.
var ErrInvalidRule = errors.New("invalid dna rule")

// PatternGeneral is the type assigned when no family matches.
const PatternGeneral = "general"

// Rule maps a pattern to a family and its transferability. Rules with
// TransferSpecific are disqualifiers: any match forces the statement to
// specific, whatever family matched first.
type Rule struct {
	Name            string                  `toml:"name"`
	Pattern         string                  `toml:"pattern"`
	Transferability profile.Transferability `toml:"transferability"`
}

// DefaultRules returns the built-in ordered rule table: universal families,
// then partial families, then specific disqualifiers.
func DefaultRules() []Rule {
	return []Rule{
		// universal
		{Name: "access_difficulty", Transferability: profile.TransferUniversal,
			Pattern: `\b(?:access|second[-\s]stor(?:y|ies)|two[-\s]stor(?:y|ies)|multi[-\s]stor(?:y|ies)|steep|slope[ds]?|crawl\s*spaces?|attics?|tight\s+spaces?|hard[-\s]to[-\s]reach|ladders?|scaffold(?:ing)?)\b`},
		{Name: "relationship_discount", Transferability: profile.TransferUniversal,
			Pattern: `\b(?:repeat|returning|loyal|referred|existing)\s+(?:customers?|clients?)\b|\b(?:referral|loyalty|neighbor|friends?\s+and\s+family)\s+discounts?\b`},
		{Name: "rush_premium", Transferability: profile.TransferUniversal,
			Pattern: `\b(?:rush|urgent|expedited?|emergency|same[-\s]day|next[-\s]day|short\s+notice|asap)\b`},
		{Name: "seasonal", Transferability: profile.TransferUniversal,
			Pattern: `\b(?:seasonal|season|winter|summer|spring|autumn|holidays?|off[-\s]season|peak\s+season)\b`},
		{Name: "permit_handling", Transferability: profile.TransferUniversal,
			Pattern: `\b(?:permits?|inspections?|hoa\s+approval|code\s+compliance|zoning)\b`},

		// partial
		{Name: "quality_preference", Transferability: profile.TransferPartial,
			Pattern: `\b(?:premium|high[-\s]end|top[-\s]tier|budget|economy|mid[-\s]range|quality\s+(?:materials?|grade)|upgraded?)\b`},
		{Name: "minimum_pricing", Transferability: profile.TransferPartial,
			Pattern: `\b(?:minimum|min\.?\s+charge|at\s+least|floor\s+price|small\s+jobs?|trip\s+(?:charge|fee))\b`},
		{Name: "material_markup", Transferability: profile.TransferPartial,
			Pattern: `\b(?:materials?|supplies|markup|mark\s+up)\b`},

		// specific disqualifiers
		{Name: "dollar_per_unit", Transferability: profile.TransferSpecific,
			Pattern: `\$\s?\d[\d,]*(?:\.\d+)?\s*(?:/|per\s+)\s*(?:sq\.?\s?ft|sqft|square\s+(?:foot|feet)|linear\s+(?:foot|feet)|lf|ft|foot|hour|hr|unit|each|yard|post|panel|gallon)\b`},
		{Name: "unit_pricing", Transferability: profile.TransferSpecific,
			Pattern: `(?:\bper\s+|/\s*)(?:sq\.?\s?ft|sqft|square\s+(?:foot|feet)|linear\s+(?:foot|feet)|lf|each|unit|post|panel)\b`},
		{Name: "category_material", Transferability: profile.TransferSpecific,
			Pattern: `\b(?:composite\s+decking|trex|cedar\s+(?:boards?|pickets?)|pressure[-\s]treated|vinyl\s+(?:siding|planks?)|asphalt\s+shingles?|hardwood\s+floor(?:ing|s)?|ceramic\s+tiles?|porcelain\s+tiles?|granite|quartz|drywall)\b`},
	}
}

// Classification is the outcome of classifying one statement.
type Classification struct {
	PatternType     string                  `json:"pattern_type"`
	Transferability profile.Transferability `json:"transferability"`
	Keywords        []string                `json:"keywords,omitempty"`
	NumericValue    *float64                `json:"numeric_value,omitempty"`
}

type compiledRule struct {
	Rule
	regex *regexp.Regexp
}

// Classifier assigns pattern type and transferability with ordered rules.
// Safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

// NewClassifier compiles rules. An empty slice selects DefaultRules.
func NewClassifier(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		switch r.Transferability {
		case profile.TransferUniversal, profile.TransferPartial, profile.TransferSpecific:
		default:
			return nil, fmt.Errorf("%w: rule %q has transferability %q", ErrInvalidRule, r.Name, r.Transferability)
		}
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, r.Name, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, regex: re})
	}
	return &Classifier{rules: compiled}, nil
}

// DefaultClassifier returns a classifier with the built-in rules.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the first matching family and its transferability.
// Any specific disqualifier overrides the family's transferability.
// Unmatched text is (general, partial).
func (c *Classifier) Classify(text string) Classification {
	out := Classification{
		PatternType:     PatternGeneral,
		Transferability: profile.TransferPartial,
		NumericValue:    numericValue(text),
	}

	matchedFamily := false
	disqualified := ""
	seen := map[string]bool{}
	for _, r := range c.rules {
		matches := r.regex.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		if r.Transferability == profile.TransferSpecific {
			if disqualified == "" {
				disqualified = r.Name
			}
			continue
		}
		if !matchedFamily {
			matchedFamily = true
			out.PatternType = r.Name
			out.Transferability = r.Transferability
		}
		for _, m := range matches {
			kw := strings.ToLower(strings.TrimSpace(m))
			if !seen[kw] {
				seen[kw] = true
				out.Keywords = append(out.Keywords, kw)
			}
		}
	}

	if disqualified != "" {
		out.Transferability = profile.TransferSpecific
		if !matchedFamily {
			out.PatternType = disqualified
		}
	}
	return out
}

var (
	percentValue = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s?(?:%|percent\b)`)
	dollarValue  = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)`)
)

// numericValue extracts the first percentage, else the first dollar amount.
func numericValue(text string) *float64 {
	for _, re := range []*regexp.Regexp{percentValue, dollarValue} {
		if m := re.FindStringSubmatch(text); m != nil {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err == nil {
				return &v
			}
		}
	}
	return nil
}
