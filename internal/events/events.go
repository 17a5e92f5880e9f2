// Package events publishes learning events and consumes finalized quotes
// over NATS.
//
// Learning events go to "<prefix>.<account>.<type>", for example
// "quotelearn.acct_42.statement_created". Payloads are JSON-encoded Event
// values. Publishing is best effort: a failed publish is logged by the
// caller and never fails the learning step that produced it.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a learning event. It is also the last subject token.
type Type string

// Learning event types.
const (
	TypeStatementCreated   Type = "statement_created"
	TypeStatementMerged    Type = "statement_merged"
	TypeAcceptanceRecorded Type = "acceptance_recorded"
	TypePatternTransferred Type = "pattern_transferred"
	TypeLearningSkipped    Type = "learning_skipped"
)

// Event is one learning event.
type Event struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	AccountID   string         `json:"account_id"`
	Category    string         `json:"category,omitempty"`
	QuoteID     string         `json:"quote_id,omitempty"`
	StatementID string         `json:"statement_id,omitempty"`
	Text        string         `json:"text,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// New creates an event with a fresh id and timestamp.
func New(t Type, accountID, category, quoteID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		AccountID:  accountID,
		Category:   category,
		QuoteID:    quoteID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends learning events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Close does nothing.
func (r *Recorder) Close() error { return nil }

// Subject returns the subject for e under prefix.
func Subject(prefix string, e Event) string {
	return prefix + "." + subjectToken(e.AccountID) + "." + string(e.Type)
}

// subjectToken makes s safe as a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*Recorder)(nil)
)
