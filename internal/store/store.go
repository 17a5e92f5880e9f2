// Package store persists category profiles and contractor DNA with
// optimistic versioning.
//
// Every record carries a Version. A Put succeeds only when the caller's
// Version equals the stored one (zero for a record that does not exist
// yet); the store then increments it. A mismatch returns ErrConflict and
// leaves the stored record untouched. UpdateProfile and UpdateDNA wrap the
// read-modify-write cycle and retry a conflict once.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when the stored version differs from the caller's.
	ErrConflict = errors.New("version conflict")

	// ErrUpdateLost is returned when an update conflicted twice and was dropped.
	ErrUpdateLost = errors.New("update lost after retry")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid store configuration")
)

// Store is the persistence interface for learning records.
type Store interface {
	// GetProfile returns the profile for key, or ErrNotFound.
	GetProfile(ctx context.Context, key profile.Key) (*profile.CategoryProfile, error)

	// PutProfile writes p if p.Version matches the stored version and
	// increments p.Version on success.
	PutProfile(ctx context.Context, p *profile.CategoryProfile) error

	// GetDNA returns the DNA record for an account, or ErrNotFound.
	GetDNA(ctx context.Context, accountID string) (*profile.ContractorDNA, error)

	// PutDNA writes d under the same versioning rule as PutProfile.
	PutDNA(ctx context.Context, d *profile.ContractorDNA) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
