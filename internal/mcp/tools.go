package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/dna"
)

// Tool names.
const (
	ToolSelectRelevantLearnings = "select_relevant_learnings"
	ToolGetConfidence           = "get_confidence"
	ToolGetPromptInjection      = "get_prompt_injection"
	ToolBootstrapCategory       = "bootstrap_category"
)

type scopeInput struct {
	AccountID string `json:"account_id" jsonschema:"Account whose learnings are read"`
	Category  string `json:"category" jsonschema:"Service category, e.g. deck_building"`
}

func (in scopeInput) validate() error {
	switch {
	case strings.TrimSpace(in.AccountID) == "":
		return fmt.Errorf("invalid input: account_id is required")
	case strings.TrimSpace(in.Category) == "":
		return fmt.Errorf("invalid input: category is required")
	}
	return nil
}

type selectInput struct {
	AccountID      string `json:"account_id" jsonschema:"Account whose learnings are read"`
	Category       string `json:"category" jsonschema:"Service category, e.g. deck_building"`
	JobDescription string `json:"job_description" jsonschema:"Description of the job being quoted"`
	K              int    `json:"k,omitempty" jsonschema:"Maximum statements to return (default 7)"`
}

type selectOutput struct {
	Learnings []string `json:"learnings" jsonschema:"Learned pricing statements, most relevant first"`
	Count     int      `json:"count" jsonschema:"Number of statements returned"`
}

type promptOutput struct {
	Prompt string `json:"prompt" jsonschema:"Guidance to add to the quote-drafting prompt"`
}

type bootstrapOutput struct {
	Learnings []dna.BootstrapLearning `json:"learnings" jsonschema:"Statements the category inherits from the account DNA"`
	Count     int                     `json:"count" jsonschema:"Number of inherited statements"`
}

// instrument wraps a tool handler with metrics and error logging.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		res, out, err := h(ctx, req, in)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSelectRelevantLearnings,
		Description: "Select the learned pricing statements most relevant to a job in one category",
	}, instrument(s, ToolSelectRelevantLearnings,
		func(ctx context.Context, _ *mcp.CallToolRequest, in selectInput) (*mcp.CallToolResult, selectOutput, error) {
			if err := (scopeInput{AccountID: in.AccountID, Category: in.Category}).validate(); err != nil {
				return nil, selectOutput{}, err
			}
			if in.K < 0 {
				return nil, selectOutput{}, fmt.Errorf("invalid input: k must not be negative")
			}
			got, err := s.learner.SelectRelevantLearnings(ctx, in.AccountID, in.Category, in.JobDescription, in.K)
			if err != nil {
				return nil, selectOutput{}, fmt.Errorf("selecting learnings: %w", err)
			}
			if got == nil {
				got = []string{}
			}
			out := selectOutput{Learnings: got, Count: len(got)}
			if len(got) == 0 {
				return text("No learnings yet for this category."), out, nil
			}
			return text(strings.Join(got, "\n")), out, nil
		}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetConfidence,
		Description: "Get the calibrated pricing confidence of a category",
	}, instrument(s, ToolGetConfidence,
		func(ctx context.Context, _ *mcp.CallToolRequest, in scopeInput) (*mcp.CallToolResult, confidence.PricingConfidence, error) {
			if err := in.validate(); err != nil {
				return nil, confidence.PricingConfidence{}, err
			}
			pc, err := s.learner.GetConfidence(ctx, in.AccountID, in.Category)
			if err != nil {
				return nil, confidence.PricingConfidence{}, fmt.Errorf("computing confidence: %w", err)
			}
			return text(fmt.Sprintf("Confidence %.0f%% (%s) from %d quotes", pc.Overall*100, pc.Tier, pc.QuoteCount)), pc, nil
		}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetPromptInjection,
		Description: "Get confidence guidance to add to the quote-drafting prompt",
	}, instrument(s, ToolGetPromptInjection,
		func(ctx context.Context, _ *mcp.CallToolRequest, in scopeInput) (*mcp.CallToolResult, promptOutput, error) {
			if err := in.validate(); err != nil {
				return nil, promptOutput{}, err
			}
			prompt, err := s.learner.GetPromptInjection(ctx, in.AccountID, in.Category)
			if err != nil {
				return nil, promptOutput{}, fmt.Errorf("rendering prompt guidance: %w", err)
			}
			return text(prompt), promptOutput{Prompt: prompt}, nil
		}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolBootstrapCategory,
		Description: "Preview what a category new to the account inherits from its other categories",
	}, instrument(s, ToolBootstrapCategory,
		func(ctx context.Context, _ *mcp.CallToolRequest, in scopeInput) (*mcp.CallToolResult, bootstrapOutput, error) {
			if err := in.validate(); err != nil {
				return nil, bootstrapOutput{}, err
			}
			seeds, err := s.learner.BootstrapCategory(ctx, in.AccountID, in.Category)
			if err != nil {
				return nil, bootstrapOutput{}, fmt.Errorf("bootstrapping category: %w", err)
			}
			if seeds == nil {
				seeds = []dna.BootstrapLearning{}
			}
			return text(fmt.Sprintf("%d inherited learnings", len(seeds))),
				bootstrapOutput{Learnings: seeds, Count: len(seeds)}, nil
		}))
}
