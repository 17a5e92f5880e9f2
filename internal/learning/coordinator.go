// Package learning coordinates what the engine learns from each finalized
// quote and serves the learned knowledge back to quote generation.
//
// An edited quote takes the correction path: its deltas become learning
// statements, merged into the category pool or added to it, and the
// transferable ones feed the account DNA. An unedited accepted quote takes
// the acceptance path and only raises the category's learned confidence.
// Process never fails the caller: learning is best effort.
package learning

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/dedup"
	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/embeddings"
	"github.com/fyrsmithlabs/quotelearn/internal/events"
	"github.com/fyrsmithlabs/quotelearn/internal/extraction"
	"github.com/fyrsmithlabs/quotelearn/internal/metrics"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
	"github.com/fyrsmithlabs/quotelearn/internal/redact"
	"github.com/fyrsmithlabs/quotelearn/internal/relevance"
	"github.com/fyrsmithlabs/quotelearn/internal/rules"
	"github.com/fyrsmithlabs/quotelearn/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/quotelearn/internal/learning"

// engines are the rule-dependent components. They are replaced together
// when the rule file changes.
type engines struct {
	scorer   *quality.Scorer
	selector *relevance.Selector
	dna      *dna.Engine
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	cfg       Config
	store     store.Store
	extractor extraction.Extractor
	dedup     *dedup.Engine
	calc      *confidence.Calculator
	redactor  *redact.Redactor
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	engines atomic.Pointer[engines]
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets the learning event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator with the built-in rule tables. A nil extractor
// selects the heuristic line-item differ and a nil embedder the hash
// embedder.
func New(
	cfg Config,
	st store.Store,
	extractor extraction.Extractor,
	embedder embeddings.Embedder,
	logger *zap.Logger,
	opts ...Option,
) (*Coordinator, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if extractor == nil {
		extractor = extraction.NewHeuristicExtractor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	redactor, err := redact.New(cfg.Redact)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		dedup:     dedup.NewEngine(cfg.Dedup, embedder, logger),
		calc:      confidence.NewCalculator(cfg.Confidence),
		redactor:  redactor,
		publisher: events.NopPublisher{},
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.ReplaceRules(rules.Defaults()); err != nil {
		return nil, err
	}
	return c, nil
}

// ReplaceRules rebuilds the scorer, selector and DNA engine from set. On
// error the current rules stay in effect.
func (c *Coordinator) ReplaceRules(set rules.Set) error {
	scorer, err := quality.NewScorerWithRules(c.cfg.Quality, set.Quality)
	if err != nil {
		return fmt.Errorf("building scorer: %w", err)
	}
	selector, err := relevance.NewSelector(c.cfg.Relevance, scorer, relevance.WithClock(c.now))
	if err != nil {
		return fmt.Errorf("building selector: %w", err)
	}
	classifier, err := dna.NewClassifier(set.DNARules)
	if err != nil {
		return fmt.Errorf("building classifier: %w", err)
	}
	c.engines.Store(&engines{
		scorer:   scorer,
		selector: selector,
		dna:      dna.NewEngine(c.cfg.DNA, classifier, set.Groups, c.logger),
	})
	return nil
}

// Process applies one finalized quote. It never returns an error; the
// outcome reports skips and failures.
func (c *Coordinator) Process(ctx context.Context, q FinalizedQuote) Outcome {
	start := c.now()
	path := q.Path()
	out := Outcome{QuoteID: q.QuoteID, AccountID: q.AccountID, Category: q.Category, Path: path}

	ctx, span := c.tracer.Start(ctx, "learning.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("quote_id", q.QuoteID),
		attribute.String("account_id", q.AccountID),
		attribute.String("category", q.Category),
		attribute.String("path", string(path)),
	)

	logger := c.logger.With(
		zap.String("quote_id", q.QuoteID),
		zap.String("account_id", q.AccountID),
		zap.String("category", q.Category),
		zap.String("path", string(path)),
	)

	if err := q.Validate(); err != nil {
		out.Result, out.SkipReason, out.Err = ResultInvalid, SkipInvalidQuote, err
		logger.Warn("ignoring invalid finalized quote", zap.Error(err))
		c.metrics.RecordSkipped(SkipInvalidQuote)
		c.finish(span, &out, start)
		return out
	}

	switch path {
	case PathCorrection:
		c.processCorrection(ctx, q, &out, logger)
	case PathAcceptance:
		c.processAcceptance(ctx, q, &out, logger)
	default:
		// Neither edited nor accepted: nothing was learned from the customer.
		out.Result = ResultSkipped
		out.SkipReason = "not_finalized"
		logger.Debug("quote neither edited nor accepted")
	}

	c.finish(span, &out, start)
	return out
}

func (c *Coordinator) finish(span trace.Span, out *Outcome, start time.Time) {
	span.SetAttributes(
		attribute.String("result", string(out.Result)),
		attribute.Int("statements_created", out.StatementsCreated),
		attribute.Int("statements_merged", out.StatementsMerged),
		attribute.Float64("learned_confidence", out.LearnedConfidence),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		if out.Result == ResultFailed {
			span.SetStatus(codes.Error, out.Err.Error())
		}
	}
	c.metrics.RecordProcessed(string(out.Path), string(out.Result), c.now().Sub(start))
}

// alreadyProcessed is a cheap pre-check so a redelivered quote does not
// pay for extraction again. The versioned update repeats the check.
func (c *Coordinator) alreadyProcessed(ctx context.Context, key profile.Key, quoteID string) bool {
	if quoteID == "" {
		return false
	}
	p, err := c.store.GetProfile(ctx, key)
	if err != nil {
		return false
	}
	return p.HasProcessed(quoteID)
}

// newProfile returns a create func for store.UpdateProfile. When seed is
// set and the account has DNA, the new profile is seeded with the
// bootstrap learnings.
func (c *Coordinator) newProfile(ctx context.Context, q FinalizedQuote, eng *engines, out *Outcome, seed bool) func() *profile.CategoryProfile {
	key := profile.Key{AccountID: q.AccountID, Category: q.Category}
	var seeds []dna.BootstrapLearning
	loaded := false

	return func() *profile.CategoryProfile {
		p := profile.NewCategoryProfile(key, q.CategoryName)
		if !seed || !c.cfg.BootstrapNewCategories {
			return p
		}
		if !loaded {
			loaded = true
			d, err := c.store.GetDNA(ctx, q.AccountID)
			switch {
			case err == nil:
				seeds = eng.dna.Bootstrap(d, q.Category)
			case !errors.Is(err, store.ErrNotFound):
				c.logger.Warn("bootstrap skipped: reading dna failed",
					zap.String("account_id", q.AccountID), zap.Error(err))
			}
		}

		now := c.now()
		out.StatementsSeeded = 0
		for _, s := range seeds {
			st, err := profile.NewStatement(q.Category, s.Text, profile.SourceDNATransfer, s.Confidence, now)
			if err != nil {
				continue
			}
			st.QualityScore = eng.scorer.Score(st.Text).Overall
			st.SampleCount = 0
			p.AddStatement(*st, c.cfg.MaxStatements)
			out.StatementsSeeded++
		}
		return p
	}
}

// update runs store.UpdateProfile and maps its errors onto out. It returns
// the written profile, or nil when nothing was written. Only the correction
// path seeds a new profile; acceptance never adds statements.
func (c *Coordinator) update(
	ctx context.Context,
	q FinalizedQuote,
	eng *engines,
	out *Outcome,
	logger *zap.Logger,
	seed bool,
	mutate func(p *profile.CategoryProfile, created bool) error,
) *profile.CategoryProfile {
	ctx, span := c.tracer.Start(ctx, "learning.update_profile")
	defer span.End()

	key := profile.Key{AccountID: q.AccountID, Category: q.Category}
	p, err := store.UpdateProfile(ctx, c.store, key, c.newProfile(ctx, q, eng, out, seed), mutate)
	switch {
	case err == nil:
		out.Result = ResultLearned
		out.LearnedConfidence = p.LearnedConfidence
		return p
	case errors.Is(err, store.ErrNoChange):
		out.Result = ResultDuplicate
		if p != nil {
			out.LearnedConfidence = p.LearnedConfidence
		}
		logger.Debug("quote already applied")
		return nil
	case errors.Is(err, store.ErrUpdateLost):
		out.Result, out.SkipReason, out.Err = ResultFailed, SkipUpdateLost, err
		c.metrics.RecordUpdateLost("profile")
		logger.Warn("profile update lost after retry", zap.Error(err))
	default:
		out.Result, out.SkipReason, out.Err = ResultFailed, SkipStoreError, err
		logger.Error("profile update failed", zap.Error(err))
	}
	out.StatementsSeeded = 0
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.metrics.RecordSkipped(out.SkipReason)
	c.publish(ctx, c.skippedEvent(q, out.SkipReason, err))
	return nil
}

// refresh recomputes the derived fields every path updates.
func (c *Coordinator) refresh(p *profile.CategoryProfile, q FinalizedQuote, now time.Time) {
	p.QuoteCount++
	p.RecordComplexity(c.cfg.complexityOf(q))
	p.LastQuoteAt = now
}

func (c *Coordinator) finalize(p *profile.CategoryProfile, q FinalizedQuote, now time.Time) {
	p.Confidence = c.calc.Compute(confidence.FromProfile(p, now)).Dimensions()
	p.MarkProcessed(q.QuoteID, c.cfg.ProcessedWindow)
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	err := c.publisher.Publish(ctx, e)
	c.metrics.RecordPublished(string(e.Type), err)
	if err != nil {
		c.logger.Warn("publishing learning event failed",
			zap.String("event_type", string(e.Type)),
			zap.String("account_id", e.AccountID),
			zap.Error(err))
	}
}

func (c *Coordinator) skippedEvent(q FinalizedQuote, reason string, err error) events.Event {
	e := events.New(events.TypeLearningSkipped, q.AccountID, q.Category, q.QuoteID)
	e.Reason = reason
	if err != nil {
		e.Data = map[string]any{"error": err.Error()}
	}
	return e
}
