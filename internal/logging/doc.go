// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with a Trace level below Debug, stdout and OTEL outputs,
// correlation fields taken from the context, secret redaction, and
// per-level sampling in which errors are never dropped.
//
// The learning engines take a plain *zap.Logger; the daemon hands them
// Underlying() and logs its own intake through the context-aware methods:
//
//	ctx = logging.WithQuote(ctx, logging.Quote{
//	    AccountID: q.AccountID,
//	    Category:  q.Category,
//	    QuoteID:   q.QuoteID,
//	})
//	logger.Info(ctx, "finalized quote received")
//
// which adds account_id, category, quote_id, trace_id and span_id to the
// entry. Identifiers are sanitized before they reach a log line.
//
// # Configuration
//
// Defaults come from NewDefaultConfig; the daemon overlays the logging
// section of its config file and QUOTELEARN_LOGGING__* variables.
//
// # Secret Redaction
//
// Secrets are redacted at three layers: the config.Secret type, encoder
// field-name filtering (password, api_key, dsn and similar), and encoder
// value patterns such as bearer tokens and credentials embedded in
// postgres, redis or nats URLs.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertNoSecrets(t)
package logging
