package store

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

type memoryEntry struct {
	data    []byte
	version int64
}

// MemoryStore keeps encoded records in process memory. Records are stored
// encoded so every read returns an independent copy.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]memoryEntry
	dna      map[string]memoryEntry
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]memoryEntry),
		dna:      make(map[string]memoryEntry),
	}
}

// GetProfile implements Store.
func (m *MemoryStore) GetProfile(ctx context.Context, key profile.Key) (*profile.CategoryProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	e, ok := m.profiles[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	p, err := profile.DecodeCategoryProfile(e.data)
	if err != nil {
		return nil, err
	}
	p.Version = e.version
	return p, nil
}

// PutProfile implements Store.
func (m *MemoryStore) PutProfile(ctx context.Context, p *profile.CategoryProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Key().Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	k := p.Key().String()
	if m.profiles[k].version != p.Version {
		return ErrConflict
	}
	p.Version++
	data, err := profile.EncodeCategoryProfile(p)
	if err != nil {
		p.Version--
		return err
	}
	m.profiles[k] = memoryEntry{data: data, version: p.Version}
	return nil
}

// GetDNA implements Store.
func (m *MemoryStore) GetDNA(ctx context.Context, accountID string) (*profile.ContractorDNA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	e, ok := m.dna[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	d, err := profile.DecodeDNA(e.data)
	if err != nil {
		return nil, err
	}
	d.Version = e.version
	return d, nil
}

// PutDNA implements Store.
func (m *MemoryStore) PutDNA(ctx context.Context, d *profile.ContractorDNA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.AccountID == "" {
		return profile.ErrEmptyAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if m.dna[d.AccountID].version != d.Version {
		return ErrConflict
	}
	d.Version++
	data, err := profile.EncodeDNA(d)
	if err != nil {
		d.Version--
		return err
	}
	m.dna[d.AccountID] = memoryEntry{data: data, version: d.Version}
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
