package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/pkg/crypto"
	"github.com/prn-tf/pantry/internal/repository"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func TestTokenRepository(t *testing.T) {
	rdb := newTestClient(t)
	repo := NewTokenRepository(rdb, 0)
	ctx := context.Background()
	first, second := crypto.HashToken("first"), crypto.HashToken("second")

	_, err := repo.GetUserID(ctx, crypto.HashToken("missing"))
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	require.NoError(t, repo.Replace(ctx, 42, first))
	uid, err := repo.GetUserID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)

	require.NoError(t, repo.Replace(ctx, 42, second))
	_, err = repo.GetUserID(ctx, first)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	uid, err = repo.GetUserID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)

	require.NoError(t, repo.Delete(ctx, 42))
	_, err = repo.GetUserID(ctx, second)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	require.NoError(t, repo.Delete(ctx, 42))
}

func TestTokenRepository_TTL(t *testing.T) {
	rdb := newTestClient(t)
	repo := NewTokenRepository(rdb, time.Hour)
	ctx := context.Background()
	hash := crypto.HashToken("expiring")

	require.NoError(t, repo.Replace(ctx, 7, hash))

	ttl, err := rdb.TTL(ctx, tokenKey(hash)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestTokenRepository_MalformedHash(t *testing.T) {
	// A nil client proves malformed hashes never reach Redis.
	repo := NewTokenRepository(nil, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"wildcard", "*"},
		{"key injection", "x pantry:user-token:1"},
		{"plain token", strings.Repeat("a", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.GetUserID(ctx, tt.hash)
			assert.ErrorIs(t, err, domain.ErrTokenNotFound)
			assert.ErrorIs(t, repo.Replace(ctx, 1, tt.hash), repository.ErrMalformedTokenHash)
		})
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pantry:token:abc", tokenKey("abc"))
	assert.Equal(t, "pantry:user-token:12", userTokenKey(12))
}
