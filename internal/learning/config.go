package learning

import (
	"time"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/dedup"
	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
	"github.com/fyrsmithlabs/quotelearn/internal/redact"
	"github.com/fyrsmithlabs/quotelearn/internal/relevance"
)

// DefaultExtractionTimeout bounds one delta extraction call.
const DefaultExtractionTimeout = 10 * time.Second

// Config holds the coordinator's own limits and the tunables of every
// engine it builds.
type Config struct {
	ExtractionTimeout time.Duration `koanf:"extraction_timeout"`

	MaxStatements   int `koanf:"max_statements"`
	MagnitudeWindow int `koanf:"magnitude_window"`
	AcceptedWindow  int `koanf:"accepted_window"`
	ProcessedWindow int `koanf:"processed_window"`

	// Line-item counts up to which a quote is simple, then medium, when
	// the quote does not state its complexity.
	SimpleMaxItems int `koanf:"simple_max_items"`
	MediumMaxItems int `koanf:"medium_max_items"`

	// BootstrapNewCategories seeds a new profile from the account DNA.
	BootstrapNewCategories bool `koanf:"bootstrap_new_categories"`

	Quality    quality.Config    `koanf:"quality"`
	Relevance  relevance.Config  `koanf:"relevance"`
	Dedup      dedup.Config      `koanf:"dedup"`
	Confidence confidence.Config `koanf:"confidence"`
	DNA        dna.Config        `koanf:"dna"`
	Redact     redact.Config     `koanf:"redact"`
}

// DefaultConfig returns the documented limits.
func DefaultConfig() Config {
	return Config{
		ExtractionTimeout:      DefaultExtractionTimeout,
		MaxStatements:          profile.DefaultMaxStatements,
		MagnitudeWindow:        profile.DefaultMagnitudeWindow,
		AcceptedWindow:         profile.DefaultAcceptedWindow,
		ProcessedWindow:        profile.DefaultProcessedWindow,
		SimpleMaxItems:         3,
		MediumMaxItems:         8,
		BootstrapNewCategories: true,
		Quality:                quality.DefaultConfig(),
		Relevance:              relevance.DefaultConfig(),
		Dedup:                  dedup.DefaultConfig(),
		Confidence:             confidence.DefaultConfig(),
		DNA:                    dna.DefaultConfig(),
		Redact:                 redact.DefaultConfig(),
	}
}

// withDefaults fills zero limits. Engine configs apply their own defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ExtractionTimeout <= 0 {
		c.ExtractionTimeout = d.ExtractionTimeout
	}
	if c.MaxStatements <= 0 {
		c.MaxStatements = d.MaxStatements
	}
	if c.MagnitudeWindow <= 0 {
		c.MagnitudeWindow = d.MagnitudeWindow
	}
	if c.AcceptedWindow <= 0 {
		c.AcceptedWindow = d.AcceptedWindow
	}
	if c.ProcessedWindow <= 0 {
		c.ProcessedWindow = d.ProcessedWindow
	}
	if c.SimpleMaxItems <= 0 {
		c.SimpleMaxItems = d.SimpleMaxItems
	}
	if c.MediumMaxItems < c.SimpleMaxItems {
		c.MediumMaxItems = max(d.MediumMaxItems, c.SimpleMaxItems)
	}
	return c
}

// complexityOf returns the stated tier, or derives one from the item count.
func (c Config) complexityOf(q FinalizedQuote) string {
	if q.Complexity != "" {
		return q.Complexity
	}
	n := max(len(q.Corrected), len(q.Original))
	switch {
	case n <= c.SimpleMaxItems:
		return confidence.ComplexitySimple
	case n <= c.MediumMaxItems:
		return confidence.ComplexityMedium
	default:
		return confidence.ComplexityComplex
	}
}
