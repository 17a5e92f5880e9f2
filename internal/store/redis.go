package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password" json:"-"`
	DB          int           `koanf:"db"`
	KeyPrefix   string        `koanf:"key_prefix"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// RedisStore keeps each record as a JSON string. Versioned writes use
// WATCH on the record key so a concurrent writer aborts the transaction.
type RedisStore struct {
	rdb    goredis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: redis addr required", ErrInvalidConfig)
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisStore(rdb, cfg.KeyPrefix, logger), nil
}

func newRedisStore(rdb goredis.UniversalClient, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "quotelearn"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		logger: logger.With(zap.String("component", "store.redis")),
	}
}

func (r *RedisStore) profileKey(key profile.Key) string {
	return r.prefix + ":profile:" + key.AccountID + ":" + key.Category
}

func (r *RedisStore) dnaKey(accountID string) string {
	return r.prefix + ":dna:" + accountID
}

// GetProfile implements Store.
func (r *RedisStore) GetProfile(ctx context.Context, key profile.Key) (*profile.CategoryProfile, error) {
	data, err := r.rdb.Get(ctx, r.profileKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return profile.DecodeCategoryProfile(data)
}

// PutProfile implements Store.
func (r *RedisStore) PutProfile(ctx context.Context, p *profile.CategoryProfile) error {
	if err := p.Key().Validate(); err != nil {
		return err
	}
	return r.casWrite(ctx, r.profileKey(p.Key()), &p.Version, func() ([]byte, error) {
		return profile.EncodeCategoryProfile(p)
	})
}

// GetDNA implements Store.
func (r *RedisStore) GetDNA(ctx context.Context, accountID string) (*profile.ContractorDNA, error) {
	data, err := r.rdb.Get(ctx, r.dnaKey(accountID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return profile.DecodeDNA(data)
}

// PutDNA implements Store.
func (r *RedisStore) PutDNA(ctx context.Context, d *profile.ContractorDNA) error {
	if d.AccountID == "" {
		return profile.ErrEmptyAccount
	}
	return r.casWrite(ctx, r.dnaKey(d.AccountID), &d.Version, func() ([]byte, error) {
		return profile.EncodeDNA(d)
	})
}

// casWrite writes encode() under key when the stored version equals
// *version. *version is incremented before encoding and restored on failure.
func (r *RedisStore) casWrite(ctx context.Context, key string, version *int64, encode func() ([]byte, error)) error {
	expected := *version
	*version = expected + 1
	data, err := encode()
	if err != nil {
		*version = expected
		return err
	}

	err = r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		r.logger.Debug("watched key changed during write", zap.String("key", key))
		*version = expected
		return ErrConflict
	default:
		*version = expected
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("redis write: %w", err)
	}
}

// storedVersion reads only the version field of the record at key.
// A missing key is version 0.
func storedVersion(ctx context.Context, tx *goredis.Tx, key string) (int64, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	var probe struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("decoding stored version: %w", err)
	}
	return probe.Version, nil
}

// Close closes the client.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
