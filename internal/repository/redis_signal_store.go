package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"PolySwarm/internal/domain/models"
	"PolySwarm/internal/domain/repository"
)

const appendTradeMaxRetries = 5

// RedisSignalStore keeps each signal as a JSON record plus a per-market
// sorted set scored by signal timestamp, which serves the window and
// recency lookups.
type RedisSignalStore struct {
	client *redis.Client
}

func NewRedisSignalStore(client *redis.Client) repository.SignalStore {
	return &RedisSignalStore{client: client}
}

func signalKey(id string) string         { return "signal:" + id }
func marketSignalsKey(mkt string) string { return "signals:" + mkt }
func scoreOf(t time.Time) float64        { return float64(t.UnixMilli()) }
func scoreArg(t time.Time) string        { return strconv.FormatInt(t.UnixMilli(), 10) }

func (s *RedisSignalStore) Put(ctx context.Context, sig *models.Signal) error {
	b, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, signalKey(sig.ID), b, 0)
	pipe.ZAdd(ctx, marketSignalsKey(sig.MarketID), redis.Z{Score: scoreOf(sig.Timestamp), Member: sig.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

func (s *RedisSignalStore) Get(ctx context.Context, id string) (*models.Signal, error) {
	b, err := s.client.Get(ctx, signalKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get signal: %w", err)
	}
	var sig models.Signal
	if err := json.Unmarshal(b, &sig); err != nil {
		return nil, fmt.Errorf("unmarshal signal: %w", err)
	}
	return &sig, nil
}

func (s *RedisSignalStore) LatestSince(ctx context.Context, marketID string, since time.Time) (*models.Signal, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, marketSignalsKey(marketID), &redis.ZRangeBy{
		Min:   scoreArg(since),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range signals: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Get(ctx, ids[0])
}

// AppendTrade updates the signal's trade list under an optimistic
// transaction so concurrent appends to one signal never lose a trade.
func (s *RedisSignalStore) AppendTrade(ctx context.Context, signalID string, t models.WhaleTrade) error {
	key := signalKey(signalID)
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("signal %s not found", signalID)
		}
		if err != nil {
			return err
		}
		var sig models.Signal
		if err := json.Unmarshal(b, &sig); err != nil {
			return fmt.Errorf("unmarshal signal: %w", err)
		}
		sig.TriggerTrades = append(sig.TriggerTrades, t)
		out, err := json.Marshal(&sig)
		if err != nil {
			return fmt.Errorf("marshal signal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < appendTradeMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("append trade to %s: too much contention", signalID)
}

func (s *RedisSignalStore) Recent(ctx context.Context, marketID string, limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.client.ZRevRange(ctx, marketSignalsKey(marketID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range signals: %w", err)
	}
	out := make([]*models.Signal, 0, len(ids))
	for _, id := range ids {
		sig, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			out = append(out, sig)
		}
	}
	return out, nil
}
