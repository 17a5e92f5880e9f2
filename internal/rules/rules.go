// Package rules loads the quality and DNA rule tables from a TOML file and
// watches it for changes.
//
// A rule file may set any subset of the tables; omitted or empty tables
// keep their built-in values:
//
//	[[quality.specificity]]
//	name = "money"
//	pattern = '\$\s?\d+'
//
//	[[dna.rules]]
//	name = "percent_markup"
//	pattern = '\d+\s?%'
//	transferability = "universal"
//
//	[dna.groups]
//	outdoor_structures = ["deck", "fence", "pergola"]
package rules

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
)

var (
	// ErrInvalidTOML indicates a rule file that does not parse.
	ErrInvalidTOML = errors.New("invalid rule file")

	// ErrInvalidRules indicates a rule file whose patterns do not compile.
	ErrInvalidRules = errors.New("invalid rules")
)

// Set is a complete, validated collection of rule tables.
type Set struct {
	Quality  quality.Rules
	DNARules []dna.Rule
	Groups   dna.Groups
}

// Defaults returns the built-in tables.
func Defaults() Set {
	return Set{
		Quality:  quality.DefaultRules(),
		DNARules: dna.DefaultRules(),
		Groups:   dna.DefaultGroups(),
	}
}

type ruleFile struct {
	Quality quality.Rules `toml:"quality"`
	DNA     struct {
		Rules  []dna.Rule          `toml:"rules"`
		Groups map[string][]string `toml:"groups"`
	} `toml:"dna"`
}

// Parse decodes rule file contents and fills omitted tables with defaults.
func Parse(data []byte) (Set, error) {
	var f ruleFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return Set{}, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Set{}, fmt.Errorf("%w: unknown keys %v", ErrInvalidTOML, undecoded)
	}

	s := Defaults()
	if len(f.Quality.Specificity) > 0 {
		s.Quality.Specificity = f.Quality.Specificity
	}
	if len(f.Quality.Actionability) > 0 {
		s.Quality.Actionability = f.Quality.Actionability
	}
	if len(f.Quality.Uncertainty) > 0 {
		s.Quality.Uncertainty = f.Quality.Uncertainty
	}
	if len(f.Quality.AntiPatterns) > 0 {
		s.Quality.AntiPatterns = f.Quality.AntiPatterns
	}
	if len(f.DNA.Rules) > 0 {
		s.DNARules = f.DNA.Rules
	}
	if len(f.DNA.Groups) > 0 {
		s.Groups = dna.Groups(f.DNA.Groups)
	}

	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Load reads and parses the rule file at path.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("reading rule file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate compiles every table.
func (s Set) Validate() error {
	if _, err := quality.NewScorerWithRules(quality.DefaultConfig(), s.Quality); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}
	if _, err := dna.NewClassifier(s.DNARules); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}
	for name, keywords := range s.Groups {
		if len(keywords) == 0 {
			return fmt.Errorf("%w: group %q has no categories", ErrInvalidRules, name)
		}
	}
	return nil
}
