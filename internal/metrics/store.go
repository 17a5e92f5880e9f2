package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/store"
)

// instrumentedStore counts and times every call to the wrapped store.
type instrumentedStore struct {
	next store.Store
	m    *Metrics
}

// InstrumentStore wraps s so each operation is counted and timed. Conflicts
// are counted per record kind. A nil m returns s unchanged.
func InstrumentStore(s store.Store, m *Metrics) store.Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{next: s, m: m}
}

func (s *instrumentedStore) observe(op, record string, start time.Time, err error) {
	res := "ok"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		res = "not_found"
	case errors.Is(err, store.ErrConflict):
		res = "conflict"
		s.m.StoreConflicts.WithLabelValues(record).Inc()
	default:
		res = "error"
	}
	s.m.StoreOperations.WithLabelValues(op, res).Inc()
	s.m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) GetProfile(ctx context.Context, key profile.Key) (*profile.CategoryProfile, error) {
	start := time.Now()
	p, err := s.next.GetProfile(ctx, key)
	s.observe("get_profile", "profile", start, err)
	return p, err
}

func (s *instrumentedStore) PutProfile(ctx context.Context, p *profile.CategoryProfile) error {
	start := time.Now()
	err := s.next.PutProfile(ctx, p)
	s.observe("put_profile", "profile", start, err)
	return err
}

func (s *instrumentedStore) GetDNA(ctx context.Context, accountID string) (*profile.ContractorDNA, error) {
	start := time.Now()
	d, err := s.next.GetDNA(ctx, accountID)
	s.observe("get_dna", "dna", start, err)
	return d, err
}

func (s *instrumentedStore) PutDNA(ctx context.Context, d *profile.ContractorDNA) error {
	start := time.Now()
	err := s.next.PutDNA(ctx, d)
	s.observe("put_dna", "dna", start, err)
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}

var _ store.Store = (*instrumentedStore)(nil)
