package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"PolySwarm/internal/domain/models"
	"PolySwarm/internal/domain/repository"
)

// RedisMarketStore keeps the metadata of every market seen on the feed.
type RedisMarketStore struct {
	client *redis.Client
}

func NewRedisMarketStore(client *redis.Client) repository.MarketStore {
	return &RedisMarketStore{client: client}
}

func marketKey(id string) string { return "market:" + id }

func (s *RedisMarketStore) Upsert(ctx context.Context, m models.Market) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal market: %w", err)
	}
	if err := s.client.Set(ctx, marketKey(m.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("store market: %w", err)
	}
	return nil
}

func (s *RedisMarketStore) Get(ctx context.Context, id string) (*models.Market, error) {
	b, err := s.client.Get(ctx, marketKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	var m models.Market
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal market: %w", err)
	}
	return &m, nil
}
