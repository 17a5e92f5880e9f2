package learning

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/events"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/store"
)

// processAcceptance boosts the category's learned confidence and records
// the accepted total. The statement pool is left untouched, even for a
// brand-new profile.
func (c *Coordinator) processAcceptance(ctx context.Context, q FinalizedQuote, out *Outcome, logger *zap.Logger) {
	eng := c.engines.Load()
	p := c.update(ctx, q, eng, out, logger, false, func(p *profile.CategoryProfile, _ bool) error {
		if p.HasProcessed(q.QuoteID) {
			return store.ErrNoChange
		}
		now := c.now()
		acceptedAt := q.FinalizedAt
		if acceptedAt.IsZero() {
			acceptedAt = now
		}

		p.AcceptanceCount++
		c.refresh(p, q, now)
		boosted := math.Min(profile.MaxConfidence, p.LearnedConfidence+c.calc.AcceptanceBoost())
		p.LearnedConfidence = c.calc.Calibrate(boosted, p.AcceptanceCount, p.CorrectionCount)
		p.PushAccepted(profile.AcceptedQuote{QuoteID: q.QuoteID, Total: q.Total, AcceptedAt: acceptedAt}, c.cfg.AcceptedWindow)
		c.finalize(p, q, now)
		return nil
	})
	if p == nil {
		return
	}

	logger.Info("acceptance recorded",
		zap.Float64("total", q.Total),
		zap.Float64("learned_confidence", p.LearnedConfidence),
		zap.Int("acceptances", p.AcceptanceCount))

	e := events.New(events.TypeAcceptanceRecorded, q.AccountID, q.Category, q.QuoteID)
	e.Confidence = p.LearnedConfidence
	e.Data = map[string]any{
		"total":       q.Total,
		"acceptances": p.AcceptanceCount,
		"corrections": p.CorrectionCount,
	}
	c.publish(ctx, e)
}
