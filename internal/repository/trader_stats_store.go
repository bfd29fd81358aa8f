package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PolySwarm/internal/domain/models"
	"PolySwarm/internal/domain/repository"
	"PolySwarm/internal/service/cache"
)

// RedisTraderStatsStore keeps trader performance profiles, written by an
// external scoring pipeline.
type RedisTraderStatsStore struct {
	client *redis.Client
}

func NewRedisTraderStatsStore(client *redis.Client) *RedisTraderStatsStore {
	return &RedisTraderStatsStore{client: client}
}

func traderKey(addr string) string { return "trader:" + addr }

func (s *RedisTraderStatsStore) Get(ctx context.Context, address string) (*models.TraderStats, error) {
	b, err := s.client.Get(ctx, traderKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trader stats: %w", err)
	}
	var ts models.TraderStats
	if err := json.Unmarshal(b, &ts); err != nil {
		return nil, fmt.Errorf("unmarshal trader stats: %w", err)
	}
	return &ts, nil
}

// Put seeds or refreshes a profile.
func (s *RedisTraderStatsStore) Put(ctx context.Context, ts models.TraderStats) error {
	b, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("marshal trader stats: %w", err)
	}
	if err := s.client.Set(ctx, traderKey(ts.Address), b, 0).Err(); err != nil {
		return fmt.Errorf("store trader stats: %w", err)
	}
	return nil
}

// CachedTraderStats fronts a stats store with a short in-process TTL
// cache; contrarian detection hits the same few whales in bursts. Misses
// are cached too, so an unknown trader costs one lookup per TTL.
type CachedTraderStats struct {
	next  repository.TraderStatsStore
	cache *cache.TTLCache
	ttl   time.Duration
}

func NewCachedTraderStats(next repository.TraderStatsStore, ttl time.Duration) repository.TraderStatsStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedTraderStats{next: next, cache: cache.NewTTLCache(), ttl: ttl}
}

func (c *CachedTraderStats) Get(ctx context.Context, address string) (*models.TraderStats, error) {
	if v, ok := c.cache.Get(address); ok {
		if ts, ok := v.(*models.TraderStats); ok {
			return ts, nil
		}
		return nil, nil
	}
	ts, err := c.next.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		c.cache.Set(address, "miss", c.ttl)
	} else {
		c.cache.Set(address, ts, c.ttl)
	}
	return ts, nil
}
