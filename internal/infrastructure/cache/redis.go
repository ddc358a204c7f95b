package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/game-marketplace/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

// RedisCartStore keeps each cart as one JSON value that expires after the
// configured TTL plus a few minutes of jitter.
type RedisCartStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, baseTTL: ttl}
}

func (r *RedisCartStore) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(buyerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(buyerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (r *RedisCartStore) Save(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cartKey(c.BuyerID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartStore) Delete(ctx context.Context, buyerID string) error {
	if err := r.client.Del(ctx, cartKey(buyerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(buyerID string) string {
	return fmt.Sprintf("cart:%s", buyerID)
}
