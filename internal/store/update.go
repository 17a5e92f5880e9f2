package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// ErrNoChange may be returned by a mutate function to end an update
// without writing. UpdateProfile and UpdateDNA pass it through.
var ErrNoChange = errors.New("no change")

// maxUpdateAttempts is one write plus one retry after a conflict.
const maxUpdateAttempts = 2

// UpdateProfile reads the profile for key, applies mutate and writes it
// back. A missing profile is created with create. A conflicting write is
// retried once from a fresh read; a second conflict returns ErrUpdateLost.
//
// mutate must be safe to run twice: it sees a fresh copy on the retry.
func UpdateProfile(
	ctx context.Context,
	s Store,
	key profile.Key,
	create func() *profile.CategoryProfile,
	mutate func(p *profile.CategoryProfile, created bool) error,
) (*profile.CategoryProfile, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		p, err := s.GetProfile(ctx, key)
		created := false
		if errors.Is(err, ErrNotFound) {
			p, created = create(), true
		} else if err != nil {
			return nil, fmt.Errorf("reading profile %s: %w", key, err)
		}

		if err := mutate(p, created); err != nil {
			return p, err
		}

		err = s.PutProfile(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("writing profile %s: %w", key, err)
		}
		if attempt >= maxUpdateAttempts {
			return nil, fmt.Errorf("%w: profile %s: %w", ErrUpdateLost, key, err)
		}
	}
}

// UpdateDNA is UpdateProfile for an account's DNA record.
func UpdateDNA(
	ctx context.Context,
	s Store,
	accountID string,
	mutate func(d *profile.ContractorDNA, created bool) error,
) (*profile.ContractorDNA, error) {
	if accountID == "" {
		return nil, profile.ErrEmptyAccount
	}

	for attempt := 1; ; attempt++ {
		d, err := s.GetDNA(ctx, accountID)
		created := false
		if errors.Is(err, ErrNotFound) {
			d, created = profile.NewContractorDNA(accountID), true
		} else if err != nil {
			return nil, fmt.Errorf("reading dna %s: %w", accountID, err)
		}

		if err := mutate(d, created); err != nil {
			return d, err
		}

		err = s.PutDNA(ctx, d)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("writing dna %s: %w", accountID, err)
		}
		if attempt >= maxUpdateAttempts {
			return nil, fmt.Errorf("%w: dna %s: %w", ErrUpdateLost, accountID, err)
		}
	}
}
