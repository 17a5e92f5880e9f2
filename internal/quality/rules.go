package quality

import (
	"fmt"
	"regexp"
)

// Rule is a named pattern. Patterns are matched case-insensitively.
type Rule struct {
	Name    string `toml:"name" koanf:"name"`
	Pattern string `toml:"pattern" koanf:"pattern"`
}

// Rules holds the signal tables the scorer evaluates. Each table is data
// and may be replaced from a rule file.
type Rules struct {
	// Specificity signals: money, percentages, measurements, materials, context.
	Specificity []Rule `toml:"specificity"`
	// Actionability signals: frequency adverbs, imperatives, conditionals, bounds.
	Actionability []Rule `toml:"actionability"`
	// Uncertainty markers; every occurrence costs clarity.
	Uncertainty []Rule `toml:"uncertainty"`
	// AntiPatterns are phrase-level defects. Length defects are checked separately.
	AntiPatterns []Rule `toml:"anti_patterns"`
}

// Anti-pattern names reported in QualityScore.DetectedAntiPatterns.
const (
	AntiVagueOpener   = "vague_opener"
	AntiSubjective    = "subjective_opinion"
	AntiGenericAdvice = "generic_advice"
	AntiKnowledgeGap  = "knowledge_gap"
	AntiTooShort      = "too_short"
	AntiTooLong       = "too_long"
)

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	return Rules{
		Specificity: []Rule{
			{Name: "money", Pattern: `\$\s?\d[\d,]*(?:\.\d+)?|\b\d[\d,]*(?:\.\d+)?\s?(?:dollars?|usd|bucks)\b`},
			{Name: "percentage", Pattern: `\b\d+(?:\.\d+)?\s?(?:%|percent\b)`},
			{Name: "measurement", Pattern: `\b\d+(?:\.\d+)?\s?(?:sq\.?\s?ft|sqft|square\s+(?:feet|foot|yards?)|linear\s+(?:feet|foot)|lf|ft|feet|foot|inch(?:es)?|yards?|hours?|hrs?|days?|gallons?|stor(?:y|ies)|panels?|posts?)\b`},
			{Name: "material", Pattern: `\b(?:deck(?:ing|s)?|railings?|composite|cedar|redwood|pressure[-\s]treated|trex|hardwood|tile|vinyl|laminate|granite|quartz|concrete|pavers?|brick|stone|shingles?|lumber|drywall|paint|primer|stain|sealant|siding|gutters?|fixtures?|fence|posts?)\b`},
			{Name: "context", Pattern: `\b(?:second[-\s]stor(?:y|ies)|two[-\s]stor(?:y|ies)|multi[-\s]stor(?:y|ies)|access|steep|slope[ds]?|rural|remote|weekends?|after[-\s]hours|rush|repeat\s+(?:customers?|clients?)|commercial|residential|older\s+homes?|permits?|hoa|winter|summer)\b`},
		},
		Actionability: []Rule{
			{Name: "frequency", Pattern: `\b(?:always|typically|usually|generally|consistently|never|every\s+time|routinely)\b`},
			{Name: "imperative", Pattern: `\b(?:add|increase|reduce|decrease|charge|include|apply|raise|lower|bump|quote|factor\s+in|mark\s+up|discount|round\s+up)\b`},
			{Name: "conditional", Pattern: `\b(?:if|when|whenever|unless|where)\b`},
			{Name: "bound", Pattern: `\b(?:minimum|maximum|at\s+least|at\s+most|no\s+less\s+than|no\s+more\s+than|floor\s+of|cap\s+(?:of|at))\b`},
		},
		Uncertainty: []Rule{
			{Name: "hedge", Pattern: `\b(?:maybe|perhaps|possibly|probably|might|could\s+be)\b`},
			{Name: "depends", Pattern: `\bit\s+depends\b`},
			{Name: "unsure", Pattern: `\b(?:not\s+sure|i\s+guess|kind\s+of|sort\s+of)\b`},
		},
		AntiPatterns: []Rule{
			{Name: AntiVagueOpener, Pattern: `^\s*(?:it\s+depends|maybe|perhaps|i\s+think|i\s+guess|basically|in\s+general|generally\s+speaking|sometimes|things)\b`},
			{Name: AntiSubjective, Pattern: `\b(?:i\s+(?:feel|believe|like|prefer)|in\s+my\s+opinion|seems?\s+(?:too|like|off)|looks?\s+(?:too|off|wrong)|feels?\s+(?:too|off|wrong))\b`},
			{Name: AntiGenericAdvice, Pattern: `\b(?:review|check|consider|revisit|reconsider|look\s+at|double[-\s]check)\s+(?:the\s+)?(?:pricing|prices?|quotes?|costs?|numbers|estimates?)\b|\bbe\s+(?:more\s+)?(?:careful|accurate)\b`},
			{Name: AntiKnowledgeGap, Pattern: `\b(?:don'?t\s+know|no\s+idea|unsure|unclear\s+why|need\s+to\s+(?:find\s+out|research|ask))\b`},
		},
	}
}

type compiledRule struct {
	name  string
	regex *regexp.Regexp
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("%w: rule %q has empty pattern", ErrInvalidRule, r.Name)
		}
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, r.Name, err)
		}
		out = append(out, compiledRule{name: r.Name, regex: re})
	}
	return out, nil
}

// countDistinct returns how many rules match text at least once.
func countDistinct(rules []compiledRule, text string) int {
	n := 0
	for _, r := range rules {
		if r.regex.MatchString(text) {
			n++
		}
	}
	return n
}

// countOccurrences returns the total number of matches across rules.
func countOccurrences(rules []compiledRule, text string) int {
	n := 0
	for _, r := range rules {
		n += len(r.regex.FindAllStringIndex(text, -1))
	}
	return n
}
