package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if q, ok := QuoteFromContext(ctx); ok {
		if q.AccountID != "" {
			fields = append(fields, zap.String("account_id", q.AccountID))
		}
		if q.Category != "" {
			fields = append(fields, zap.String("category", q.Category))
		}
		if q.QuoteID != "" {
			fields = append(fields, zap.String("quote_id", q.QuoteID))
		}
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	return fields
}

type quoteCtxKey struct{}
type requestCtxKey struct{}

// Quote identifies the finalized quote a log line belongs to.
type Quote struct {
	AccountID string
	Category  string
	QuoteID   string
}

// InvalidID replaces identifiers that are unsafe to log verbatim.
const InvalidID = "invalid"

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// sanitizeID keeps empty and well-formed identifiers. Identifiers arrive
// from the message bus and HTTP headers, so a malformed one is replaced
// instead of rejected.
func sanitizeID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) > maxIDLen || !utf8.ValidString(id) || !idPattern.MatchString(id) {
		return InvalidID
	}
	return id
}

// WithQuote adds quote identifiers to context.
func WithQuote(ctx context.Context, q Quote) context.Context {
	q.AccountID = sanitizeID(q.AccountID)
	q.Category = sanitizeID(q.Category)
	q.QuoteID = sanitizeID(q.QuoteID)
	return context.WithValue(ctx, quoteCtxKey{}, q)
}

// QuoteFromContext extracts quote identifiers from context.
func QuoteFromContext(ctx context.Context) (Quote, bool) {
	q, ok := ctx.Value(quoteCtxKey{}).(Quote)
	return q, ok
}

// WithRequestID adds request ID to context. An empty ID leaves ctx as is.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = sanitizeID(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
