// Package mcp serves the read side of the learning engine as MCP tools so
// a quote-drafting agent can fetch learned statements and confidence
// guidance while it prices a job.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the learning coordinator directly.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/dna"
)

// Learner is the read-side facade the tools call. *learning.Coordinator
// implements it.
type Learner interface {
	SelectRelevantLearnings(ctx context.Context, accountID, category, jobText string, k int) ([]string, error)
	GetConfidence(ctx context.Context, accountID, category string) (confidence.PricingConfidence, error)
	GetPromptInjection(ctx context.Context, accountID, category string) (string, error)
	BootstrapCategory(ctx context.Context, accountID, category string) ([]dna.BootstrapLearning, error)
}

// Server is an MCP server over a Learner.
type Server struct {
	mcp     *mcp.Server
	learner Learner
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "quotelearn")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "quotelearn",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server and registers the learning tools.
func NewServer(cfg *Config, learner Learner) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if learner == nil {
		return nil, errors.New("learner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		learner: learner,
		metrics: NewMetrics(logger),
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// Connect binds the server to one transport, for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
