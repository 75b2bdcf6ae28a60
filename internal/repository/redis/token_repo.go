// Package redis provides a Redis-backed token store.
// Token hashes are kept as two keys per user so that lookups by hash and
// rotation by user are both single reads.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/pkg/crypto"
	"github.com/prn-tf/pantry/internal/repository"
)

const (
	tokenPrefix     = "pantry:token:"
	userTokenPrefix = "pantry:user-token:"

	// maxTxRetries bounds optimistic-lock retries when two logins race.
	maxTxRetries = 5
)

// NewClient creates and pings a Redis client.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// tokenRepository implements repository.TokenRepository on Redis.
type tokenRepository struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewTokenRepository creates a Redis token repository.
// A zero ttl keeps tokens until they are replaced.
func NewTokenRepository(rdb goredis.UniversalClient, ttl time.Duration) repository.TokenRepository {
	return &tokenRepository{rdb: rdb, ttl: ttl}
}

func tokenKey(hash string) string {
	return tokenPrefix + hash
}

func userTokenKey(userID int64) string {
	return userTokenPrefix + strconv.FormatInt(userID, 10)
}

// Replace stores tokenHash as the user's only token.
func (r *tokenRepository) Replace(ctx context.Context, userID int64, tokenHash string) error {
	if !crypto.ValidateSHA256(tokenHash) {
		return repository.ErrMalformedTokenHash
	}
	userKey := userTokenKey(userID)

	txf := func(tx *goredis.Tx) error {
		previous, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if previous != "" {
				pipe.Del(ctx, tokenKey(previous))
			}
			pipe.Set(ctx, tokenKey(tokenHash), userID, r.ttl)
			pipe.Set(ctx, userKey, tokenHash, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, userKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to store token: %w", err)
	}
	return fmt.Errorf("failed to store token: %w", goredis.TxFailedErr)
}

// GetUserID resolves a token hash to its owner.
func (r *tokenRepository) GetUserID(ctx context.Context, tokenHash string) (int64, error) {
	if !crypto.ValidateSHA256(tokenHash) {
		return 0, domain.ErrTokenNotFound
	}
	userID, err := r.rdb.Get(ctx, tokenKey(tokenHash)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, domain.ErrTokenNotFound
		}
		return 0, fmt.Errorf("failed to get token: %w", err)
	}
	return userID, nil
}

// Delete removes the user's token.
func (r *tokenRepository) Delete(ctx context.Context, userID int64) error {
	userKey := userTokenKey(userID)

	previous, err := r.rdb.Get(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to get token: %w", err)
	}

	if err := r.rdb.Del(ctx, userKey, tokenKey(previous)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

var _ repository.TokenRepository = (*tokenRepository)(nil)
