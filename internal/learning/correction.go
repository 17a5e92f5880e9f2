package learning

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/events"
	"github.com/fyrsmithlabs/quotelearn/internal/extraction"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
	"github.com/fyrsmithlabs/quotelearn/internal/store"
)

// candidate is a drafted statement for one genuine delta.
type candidate struct {
	delta extraction.Delta
	text  string
	score quality.QualityScore
}

// touched records a statement created or merged by this quote.
type touched struct {
	id      string
	created bool
}

func (c *Coordinator) processCorrection(ctx context.Context, q FinalizedQuote, out *Outcome, logger *zap.Logger) {
	key := profile.Key{AccountID: q.AccountID, Category: q.Category}
	if c.alreadyProcessed(ctx, key, q.QuoteID) {
		out.Result = ResultDuplicate
		logger.Debug("quote already applied")
		return
	}

	deltas, err := c.extract(ctx, q)
	if err != nil {
		reason := SkipExtractionFailed
		if errors.Is(err, context.DeadlineExceeded) {
			reason = SkipExtractionTimeout
		}
		out.Result, out.SkipReason, out.Err = ResultSkipped, reason, err
		logger.Warn("skipping correction learning", zap.String("reason", reason), zap.Error(err))
		c.metrics.RecordSkipped(reason)
		c.publish(ctx, c.skippedEvent(q, reason, err))
		return
	}

	eng := c.engines.Load()
	candidates, rejected := c.draftAll(eng, deltas, q.Category)
	out.StatementsRejected = rejected
	if rejected > 0 {
		c.metrics.RecordStatements("rejected", rejected)
	}

	var changes []touched
	var evicted []string
	p := c.update(ctx, q, eng, out, logger, true, func(p *profile.CategoryProfile, created bool) error {
		if p.HasProcessed(q.QuoteID) {
			return store.ErrNoChange
		}
		if !created {
			out.StatementsSeeded = 0
		}
		now := c.now()
		changes = c.applyCandidates(ctx, p, candidates, now, logger)

		p.CorrectionCount++
		// Every genuine delta counts toward accuracy, drafted or not.
		for _, d := range deltas {
			p.PushMagnitude(d.Magnitude(), c.cfg.MagnitudeWindow)
		}
		c.refresh(p, q, now)
		p.LearnedConfidence = c.calc.Calibrate(p.LearnedConfidence, p.AcceptanceCount, p.CorrectionCount)
		evicted = p.EnforceCap(c.cfg.MaxStatements)
		c.finalize(p, q, now)
		return nil
	})
	if p == nil {
		return
	}

	out.StatementsCreated, out.StatementsMerged = 0, 0
	for _, t := range changes {
		if t.created {
			out.StatementsCreated++
		} else {
			out.StatementsMerged++
		}
	}
	out.StatementsEvicted = len(evicted)
	c.metrics.RecordStatements("created", out.StatementsCreated)
	c.metrics.RecordStatements("merged", out.StatementsMerged)
	c.metrics.RecordStatements("evicted", out.StatementsEvicted)
	c.metrics.RecordStatements("seeded", out.StatementsSeeded)

	logger.Info("correction learned",
		zap.Int("deltas", len(deltas)),
		zap.Int("created", out.StatementsCreated),
		zap.Int("merged", out.StatementsMerged),
		zap.Int("evicted", out.StatementsEvicted),
		zap.Float64("learned_confidence", p.LearnedConfidence))

	gone := make(map[string]bool, len(evicted))
	for _, id := range evicted {
		gone[id] = true
	}
	for _, t := range changes {
		if gone[t.id] {
			continue
		}
		if i := p.FindStatement(t.id); i >= 0 {
			c.publish(ctx, c.statementEvent(q, p.Statements[i], t.created))
		}
	}

	c.transfer(ctx, q, p, changes, candidates, out, logger)
}

// extract runs the extractor under the configured timeout and keeps only
// genuine deltas.
func (c *Coordinator) extract(ctx context.Context, q FinalizedQuote) ([]extraction.Delta, error) {
	ctx, span := c.tracer.Start(ctx, "learning.extract")
	defer span.End()
	span.SetAttributes(attribute.String("extractor", c.extractor.Name()))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExtractionTimeout)
	defer cancel()

	start := c.now()
	deltas, err := c.extractor.Extract(ctx, q.Diff())
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	c.metrics.RecordExtraction(c.extractor.Name(), c.now().Sub(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	genuine := deltas[:0:0]
	for _, d := range deltas {
		if d.Genuine() {
			genuine = append(genuine, d)
		}
	}
	span.SetAttributes(attribute.Int("deltas", len(deltas)), attribute.Int("genuine", len(genuine)))
	return genuine, nil
}

// draftAll turns deltas into scored candidates. Each delta tries the
// extractor's own wording first, then the template with the reason, then
// the bare template, and keeps the first text that is not rejected.
func (c *Coordinator) draftAll(eng *engines, deltas []extraction.Delta, category string) ([]candidate, int) {
	out := make([]candidate, 0, len(deltas))
	rejected := 0
	for _, d := range deltas {
		texts := make([]string, 0, 3)
		if d.Learning != "" {
			texts = append(texts, d.Learning)
		}
		texts = append(texts, extraction.DraftStatement(d, category))
		if d.Reason != "" {
			bare := d
			bare.Reason = ""
			texts = append(texts, extraction.DraftStatement(bare, category))
		}

		for _, text := range texts {
			if res := c.redactor.Redact(text); res.Redacted() {
				rules := res.RuleIDs()
				c.metrics.RecordRedactions(rules)
				c.logger.Warn("credentials redacted from drafted statement",
					zap.String("category", category), zap.Strings("rules", rules))
				text = res.Text
			}
			score := eng.scorer.Score(text)
			if score.Tier == quality.TierReject {
				rejected++
				continue
			}
			out = append(out, candidate{delta: d, text: text, score: score})
			break
		}
	}
	return out, rejected
}

// applyCandidates merges each candidate into its closest statement or adds
// it to the pool. An embedding failure skips matching for that candidate.
func (c *Coordinator) applyCandidates(ctx context.Context, p *profile.CategoryProfile, cands []candidate, now time.Time, logger *zap.Logger) []touched {
	changes := make([]touched, 0, len(cands))
	rate := c.calc.LearningRate(p.CorrectionCount)

	for _, cand := range cands {
		st, err := profile.NewStatement(p.Category, cand.text, profile.SourceCorrection, c.calc.InitialStatementConfidence(), now)
		if err != nil {
			continue
		}
		st.QualityScore = cand.score.Overall
		st.TotalImpact = cand.delta.Impact()

		idx, sim, err := c.dedup.FindMatch(ctx, st, p.Statements)
		if err != nil {
			logger.Warn("statement matching unavailable, adding without dedup", zap.Error(err))
			idx = -1
		}
		if idx >= 0 {
			existing := &p.Statements[idx]
			existing.SampleCount++
			existing.TotalImpact += cand.delta.Impact()
			existing.LastSeenAt = now
			existing.Boost(rate)
			changes = append(changes, touched{id: existing.ID})
			logger.Debug("merged correction into statement",
				zap.String("statement_id", existing.ID), zap.Float64("similarity", sim))
			continue
		}
		p.Statements = append(p.Statements, *st)
		changes = append(changes, touched{id: st.ID, created: true})
	}
	return changes
}

// transfer feeds this quote's qualifying statements and markups into the
// account DNA.
func (c *Coordinator) transfer(
	ctx context.Context,
	q FinalizedQuote,
	p *profile.CategoryProfile,
	changes []touched,
	cands []candidate,
	out *Outcome,
	logger *zap.Logger,
) {
	ctx, span := c.tracer.Start(ctx, "learning.update_dna")
	defer span.End()

	eng := c.engines.Load()
	var qualifying []profile.Statement
	seen := map[string]bool{}
	for _, t := range changes {
		i := p.FindStatement(t.id)
		if i < 0 || seen[t.id] {
			continue
		}
		seen[t.id] = true
		if p.Statements[i].QualityScore >= eng.dna.MinStatementQuality() {
			qualifying = append(qualifying, p.Statements[i])
		}
	}

	var added []profile.TransferablePattern
	_, err := store.UpdateDNA(ctx, c.store, q.AccountID, func(d *profile.ContractorDNA, _ bool) error {
		now := c.now()
		added = added[:0]
		for _, st := range qualifying {
			pattern, ok := eng.dna.Extract(st, p.Category, p.QuoteCount, now)
			if !ok {
				continue
			}
			if eng.dna.Merge(d, pattern, now) {
				added = append(added, pattern)
			}
		}
		for _, cand := range cands {
			eng.dna.RecordStyle(d, cand.delta.SignedMagnitude())
		}
		d.TotalCorrections++
		d.MarkCategory(p.Category)
		d.DNAConfidence = eng.dna.Quality(d)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, store.ErrUpdateLost) {
			c.metrics.RecordUpdateLost("dna")
		}
		logger.Warn("dna update failed", zap.Error(err))
		return
	}

	out.PatternsTransferred = len(added)
	span.SetAttributes(attribute.Int("patterns_added", len(added)))
	c.metrics.RecordTransferred(len(added))
	for _, pattern := range added {
		e := events.New(events.TypePatternTransferred, q.AccountID, q.Category, q.QuoteID)
		e.Text = pattern.Statement
		e.Confidence = pattern.SourceConfidence
		e.Data = map[string]any{
			"pattern_type":    pattern.PatternType,
			"transferability": string(pattern.Transferability),
		}
		c.publish(ctx, e)
	}
}

func (c *Coordinator) statementEvent(q FinalizedQuote, st profile.Statement, created bool) events.Event {
	t := events.TypeStatementMerged
	if created {
		t = events.TypeStatementCreated
	}
	e := events.New(t, q.AccountID, q.Category, q.QuoteID)
	e.StatementID = st.ID
	e.Text = st.Text
	e.Confidence = st.Confidence
	e.Data = map[string]any{
		"sample_count":  st.SampleCount,
		"quality_score": st.QualityScore,
	}
	return e
}
