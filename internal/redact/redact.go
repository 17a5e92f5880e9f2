// Package redact removes credentials from learning statement text before
// it is stored or published.
//
// Detection uses the gitleaks default rule set. Each secret is replaced
// with a [REDACTED:rule-id] marker so the statement keeps its shape for
// scoring and embedding.
package redact

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Config controls redaction.
type Config struct {
	Enabled bool `koanf:"enabled"`
	// AllowRegexes are content patterns never treated as secrets.
	AllowRegexes []string `koanf:"allow_regexes"`
}

// DefaultConfig enables redaction with no allowlist.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Finding is one redacted secret. The secret itself is not kept.
type Finding struct {
	RuleID   string `json:"rule_id"`
	RuleDesc string `json:"rule_desc"`
	Length   int    `json:"length"`
}

// Result is the redacted text and what was removed from it.
type Result struct {
	Text     string
	Findings []Finding
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool { return len(r.Findings) > 0 }

// RuleIDs returns the distinct rules that fired, sorted.
func (r Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		ids = append(ids, f.RuleID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Loading the default rule set compiles several hundred patterns.
var defaultRules = sync.OnceValues(func() (gitleaksconfig.Config, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return gitleaksconfig.Config{}, err
	}
	return d.Config, nil
})

// Redactor is safe for concurrent use. A disabled Redactor returns text
// unchanged.
type Redactor struct {
	enabled bool
	rules   gitleaksconfig.Config
}

// New loads the rule set and applies the allowlist.
func New(cfg Config) (*Redactor, error) {
	if !cfg.Enabled {
		return &Redactor{}, nil
	}

	rules, err := defaultRules()
	if err != nil {
		return nil, fmt.Errorf("loading secret rules: %w", err)
	}
	if len(cfg.AllowRegexes) > 0 {
		allow := &gitleaksconfig.Allowlist{Description: "quotelearn allowlist"}
		for _, pattern := range cfg.AllowRegexes {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid allow regex %q: %w", pattern, err)
			}
			allow.Regexes = append(allow.Regexes, (*gitleaksregexp.Regexp)(re))
		}
		if err := allow.Validate(); err != nil {
			return nil, fmt.Errorf("invalid allowlist: %w", err)
		}
		rules.Allowlists = append(slices.Clip(rules.Allowlists), allow)
	}
	return &Redactor{enabled: true, rules: rules}, nil
}

// Enabled reports whether r redacts anything.
func (r *Redactor) Enabled() bool { return r != nil && r.enabled }

// Redact replaces every detected secret in text.
func (r *Redactor) Redact(text string) Result {
	if !r.Enabled() || text == "" {
		return Result{Text: text}
	}

	// A Detector accumulates findings, so each call gets its own.
	found := detect.NewDetector(r.rules).DetectString(text)
	if len(found) == 0 {
		return Result{Text: text}
	}

	findings := make([]Finding, 0, len(found))
	secrets := make(map[string]string, len(found))
	for _, f := range found {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" {
			continue
		}
		findings = append(findings, Finding{RuleID: f.RuleID, RuleDesc: f.Description, Length: len(secret)})
		if _, ok := secrets[secret]; !ok {
			secrets[secret] = f.RuleID
		}
	}

	// Longest first, so a secret containing another is replaced whole.
	ordered := make([]string, 0, len(secrets))
	for s := range secrets {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	out := text
	for _, s := range ordered {
		out = strings.ReplaceAll(out, s, "[REDACTED:"+secrets[s]+"]")
	}
	return Result{Text: out, Findings: findings}
}
