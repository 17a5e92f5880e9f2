package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fyrsmithlabs/quotelearn/internal/learning"
	"github.com/fyrsmithlabs/quotelearn/internal/logging"
)

// processor is the part of the coordinator the consumer drives.
type processor interface {
	Process(ctx context.Context, q learning.FinalizedQuote) learning.Outcome
}

// consumer hands finalized quotes to the coordinator, at most limit at a
// time. NATS delivers a subscription's messages on a single goroutine, so
// a full consumer blocks delivery and the backlog stays in the client's
// pending buffer.
type consumer struct {
	proc   processor
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *logging.Logger
}

func newConsumer(proc processor, limit int, logger *logging.Logger) *consumer {
	if limit < 1 {
		limit = 1
	}
	return &consumer{
		proc:   proc,
		sem:    semaphore.NewWeighted(int64(limit)),
		logger: logger,
	}
}

// handle processes q in the background. Once ctx is cancelled new quotes
// are dropped; quotes already started run to completion.
func (c *consumer) handle(ctx context.Context, q learning.FinalizedQuote) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.logger.Warn(ctx, "dropping finalized quote during shutdown", zap.String("quote_id", q.QuoteID))
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.sem.Release(1)

		qctx := logging.WithQuote(context.WithoutCancel(ctx), logging.Quote{
			AccountID: q.AccountID,
			Category:  q.Category,
			QuoteID:   q.QuoteID,
		})
		out := c.proc.Process(qctx, q)

		fields := []zap.Field{
			zap.String("path", string(out.Path)),
			zap.String("result", string(out.Result)),
			zap.Int("statements_created", out.StatementsCreated),
			zap.Int("statements_merged", out.StatementsMerged),
		}
		if out.Err != nil {
			c.logger.Warn(qctx, "finalized quote not learned", append(fields,
				zap.String("skip_reason", out.SkipReason),
				zap.Error(out.Err))...)
			return
		}
		c.logger.Debug(qctx, "finalized quote processed", fields...)
	}()
}

// wait blocks until every started quote has finished.
func (c *consumer) wait() {
	c.wg.Wait()
}
