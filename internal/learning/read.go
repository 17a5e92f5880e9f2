package learning

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/store"
)

// SelectRelevantLearnings returns up to k statement texts for a job in the
// category, most relevant first. The pool is deduplicated first. A category
// with no statements yet falls back to its bootstrap learnings. Missing
// account or category yields an empty result.
func (c *Coordinator) SelectRelevantLearnings(ctx context.Context, accountID, category, jobText string, k int) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "learning.select_relevant")
	defer span.End()
	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.String("category", category),
		attribute.Int("k", k),
	)

	key := profile.Key{AccountID: accountID, Category: category}
	if err := key.Validate(); err != nil {
		return []string{}, nil
	}
	eng := c.engines.Load()

	p, err := c.store.GetProfile(ctx, key)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(p.Statements) == 0) {
		seeds, err := c.BootstrapCategory(ctx, accountID, category)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(seeds))
		for _, s := range seeds {
			texts = append(texts, s.Text)
		}
		return eng.selector.SelectTexts(texts, jobText, k), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reading profile %s: %w", key, err)
	}

	res, err := c.dedup.Deduplicate(ctx, p.Statements)
	if err != nil {
		return nil, fmt.Errorf("deduplicating %s: %w", key, err)
	}
	if res.Stats.Skipped {
		c.logger.Warn("selecting from undeduplicated pool", zap.String("profile", key.String()))
	}
	span.SetAttributes(
		attribute.Int("pool", res.Stats.OriginalCount),
		attribute.Int("deduplicated", res.Stats.FinalCount),
	)
	return eng.selector.Select(res.Statements, jobText, k), nil
}

// GetConfidence computes the category's current confidence. A category
// without a profile reports the low-volume baseline.
func (c *Coordinator) GetConfidence(ctx context.Context, accountID, category string) (confidence.PricingConfidence, error) {
	pc, _, err := c.confidence(ctx, accountID, category)
	return pc, err
}

// GetPromptInjection renders the confidence guidance for the category.
func (c *Coordinator) GetPromptInjection(ctx context.Context, accountID, category string) (string, error) {
	pc, name, err := c.confidence(ctx, accountID, category)
	if err != nil {
		return "", err
	}
	return confidence.PromptInjection(pc, name), nil
}

func (c *Coordinator) confidence(ctx context.Context, accountID, category string) (confidence.PricingConfidence, string, error) {
	ctx, span := c.tracer.Start(ctx, "learning.get_confidence")
	defer span.End()
	span.SetAttributes(attribute.String("account_id", accountID), attribute.String("category", category))

	key := profile.Key{AccountID: accountID, Category: category}
	if err := key.Validate(); err != nil {
		return c.calc.Compute(confidence.Input{}), "", nil
	}
	p, err := c.store.GetProfile(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return c.calc.Compute(confidence.Input{}), profile.DisplayName(category), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return confidence.PricingConfidence{}, "", fmt.Errorf("reading profile %s: %w", key, err)
	}
	pc := c.calc.Compute(confidence.FromProfile(p, c.now()))
	span.SetAttributes(attribute.Float64("overall", pc.Overall), attribute.String("tier", string(pc.Tier)))
	return pc, p.DisplayName, nil
}

// BootstrapCategory returns what a new category would inherit from the
// account DNA. An account without DNA inherits nothing.
func (c *Coordinator) BootstrapCategory(ctx context.Context, accountID, category string) ([]dna.BootstrapLearning, error) {
	ctx, span := c.tracer.Start(ctx, "learning.bootstrap_category")
	defer span.End()
	span.SetAttributes(attribute.String("account_id", accountID), attribute.String("category", category))

	if accountID == "" || category == "" {
		return nil, nil
	}
	d, err := c.store.GetDNA(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reading dna %s: %w", accountID, err)
	}
	seeds := c.engines.Load().dna.Bootstrap(d, category)
	span.SetAttributes(attribute.Int("learnings", len(seeds)))
	return seeds, nil
}
