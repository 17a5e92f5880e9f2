package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN          string `koanf:"dsn" json:"-"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS quotelearn_profiles (
	account_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	version    BIGINT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account_id, category)
);
CREATE TABLE IF NOT EXISTS quotelearn_dna (
	account_id TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore keeps records as JSONB rows with a version column.
// Writes are conditional on the version, so a lost race updates zero rows.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore opens the database, verifies it and creates the tables.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{
		db:     db,
		logger: logger.With(zap.String("component", "store.postgres")),
	}, nil
}

// GetProfile implements Store.
func (s *PostgresStore) GetProfile(ctx context.Context, key profile.Key) (*profile.CategoryProfile, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM quotelearn_profiles WHERE account_id = $1 AND category = $2`,
		key.AccountID, key.Category,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting profile: %w", err)
	}
	return profile.DecodeCategoryProfile(data)
}

// PutProfile implements Store.
func (s *PostgresStore) PutProfile(ctx context.Context, p *profile.CategoryProfile) error {
	if err := p.Key().Validate(); err != nil {
		return err
	}

	expected := p.Version
	p.Version = expected + 1
	data, err := profile.EncodeCategoryProfile(p)
	if err != nil {
		p.Version = expected
		return err
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
INSERT INTO quotelearn_profiles (account_id, category, version, data)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_id, category) DO NOTHING`,
			p.AccountID, p.Category, p.Version, data)
	} else {
		res, err = s.db.ExecContext(ctx, `
UPDATE quotelearn_profiles SET version = $3, data = $4, updated_at = now()
WHERE account_id = $1 AND category = $2 AND version = $5`,
			p.AccountID, p.Category, p.Version, data, expected)
	}
	if err := checkWrite(res, err); err != nil {
		p.Version = expected
		return err
	}
	return nil
}

// GetDNA implements Store.
func (s *PostgresStore) GetDNA(ctx context.Context, accountID string) (*profile.ContractorDNA, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM quotelearn_dna WHERE account_id = $1`, accountID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting dna: %w", err)
	}
	return profile.DecodeDNA(data)
}

// PutDNA implements Store.
func (s *PostgresStore) PutDNA(ctx context.Context, d *profile.ContractorDNA) error {
	if d.AccountID == "" {
		return profile.ErrEmptyAccount
	}

	expected := d.Version
	d.Version = expected + 1
	data, err := profile.EncodeDNA(d)
	if err != nil {
		d.Version = expected
		return err
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
INSERT INTO quotelearn_dna (account_id, version, data)
VALUES ($1, $2, $3)
ON CONFLICT (account_id) DO NOTHING`,
			d.AccountID, d.Version, data)
	} else {
		res, err = s.db.ExecContext(ctx, `
UPDATE quotelearn_dna SET version = $2, data = $3, updated_at = now()
WHERE account_id = $1 AND version = $4`,
			d.AccountID, d.Version, data, expected)
	}
	if err := checkWrite(res, err); err != nil {
		d.Version = expected
		return err
	}
	return nil
}

// checkWrite maps a conditional write that touched no rows to ErrConflict.
func checkWrite(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
