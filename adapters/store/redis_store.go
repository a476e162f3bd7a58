package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of redis.Cmdable the store needs
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore is a Redis implementation of the NonceStore interface
type RedisStore struct {
	client redisClient
	prefix string
}

// NewRedisStore creates a new Redis nonce store
func NewRedisStore(client redisClient) ports.NonceStore {
	return &RedisStore{
		client: client,
		prefix: "walletlink:nonce:",
	}
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

// Put stores the nonce with the remaining lifetime as TTL
func (s *RedisStore) Put(ctx context.Context, nonce *core.Nonce) error {
	var ttl time.Duration
	if !nonce.ExpiresAt.IsZero() {
		ttl = time.Until(nonce.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	if err := s.client.Set(ctx, s.key(nonce.UserID), nonce.Value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", errors.Join(core.ErrStoreOperationFailed, err))
	}

	return nil
}

// Take atomically reads and deletes the user's nonce
func (s *RedisStore) Take(ctx context.Context, userID int64) (*core.Nonce, error) {
	value, err := s.client.GetDel(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNonceNotFound
		}
		return nil, fmt.Errorf("failed to take nonce: %w", errors.Join(core.ErrStoreOperationFailed, err))
	}

	return &core.Nonce{
		UserID: userID,
		Value:  value,
	}, nil
}
