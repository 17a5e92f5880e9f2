// Package config loads quotelearn daemon configuration.
//
// Settings come from a YAML file and QUOTELEARN_* environment variables
// layered over built-in defaults. The daemon's own settings decode into
// Config; each engine decodes its subtree with Section so the engine
// packages keep their own defaults and koanf tags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"
)

// Section names decoded by the daemon.
const (
	SectionLearning   = "learning"
	SectionExtraction = "extraction"
	SectionEmbeddings = "embeddings"
	SectionStore      = "store"
	SectionEvents     = "events"
	SectionLogging    = "logging"
	SectionTelemetry  = "telemetry"
)

// Config holds the daemon settings.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Rules         RulesConfig         `koanf:"rules"`

	k *koanf.Koanf
}

// ServerConfig holds HTTP server and intake configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxConcurrent caps finalized quotes processed at once.
	MaxConcurrent int `koanf:"max_concurrent"`
	// MCP serves the read-side learning tools on /mcp.
	MCP bool `koanf:"mcp"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// RulesConfig points at the optional TOML rule file.
type RulesConfig struct {
	// Path is empty to run on the built-in rules.
	Path     string        `koanf:"path"`
	Watch    bool          `koanf:"watch"`
	Debounce time.Duration `koanf:"debounce"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8090,
			ShutdownTimeout: 10 * time.Second,
			MaxConcurrent:   8,
			MCP:             true,
		},
		Observability: ObservabilityConfig{
			ServiceName: "quotelearn",
		},
		Rules: RulesConfig{
			Debounce: 250 * time.Millisecond,
		},
	}
}

// Section decodes the subtree at path onto out. Keys absent from both the
// file and the environment keep the values already in out, so callers pass
// a struct pre-filled with the package defaults.
func (c *Config) Section(path string, out any) error {
	if c.k == nil || !c.k.Exists(path) {
		return nil
	}
	if err := c.k.Unmarshal(path, out); err != nil {
		return fmt.Errorf("failed to decode %s config: %w", path, err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("invalid max_concurrent: %d (must be at least 1)", c.Server.MaxConcurrent)
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Rules.Watch && c.Rules.Path == "" {
		return errors.New("rules.watch requires rules.path")
	}
	if c.Rules.Debounce < 0 {
		return errors.New("rules debounce cannot be negative")
	}
	return nil
}
