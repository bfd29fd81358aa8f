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

// RedisTriggerStore keeps triggers as JSON records. The single-active
// guard is a SETNX marker per (market, type) whose TTL matches the
// trigger's lifetime, so the uniqueness check and the expiry share one
// source of truth. A global sorted set scored by expiry drives the sweep.
type RedisTriggerStore struct {
	client *redis.Client
}

func NewRedisTriggerStore(client *redis.Client) repository.TriggerStore {
	return &RedisTriggerStore{client: client}
}

func triggerKey(id string) string { return "trigger:" + id }
func activeMarkerKey(marketID string, typ models.TriggerType) string {
	return "trigger:active:" + marketID + ":" + string(typ)
}

const activeByExpiryKey = "triggers:active"

func (s *RedisTriggerStore) Active(ctx context.Context, marketID string, typ models.TriggerType) (*models.Trigger, error) {
	id, err := s.client.Get(ctx, activeMarkerKey(marketID, typ)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active marker: %w", err)
	}

	trig, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if trig == nil || trig.Status != models.TriggerActive {
		return nil, nil
	}
	// Marker TTL and ExpiresAt are set together, but the record is the
	// authority if they ever disagree.
	if trig.ExpiredBy(time.Now()) {
		if err := s.expireOne(ctx, trig); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return trig, nil
}

func (s *RedisTriggerStore) CreateIfAbsent(ctx context.Context, t *models.Trigger) (bool, error) {
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		return false, fmt.Errorf("trigger %s already expired at creation", t.ID)
	}

	ok, err := s.client.SetNX(ctx, activeMarkerKey(t.MarketID, t.Type), t.ID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set active marker: %w", err)
	}
	if !ok {
		return false, nil
	}

	b, err := json.Marshal(t)
	if err != nil {
		return false, fmt.Errorf("marshal trigger: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, triggerKey(t.ID), b, 0)
	pipe.ZAdd(ctx, activeByExpiryKey, redis.Z{Score: float64(t.ExpiresAt.UnixMilli()), Member: t.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("store trigger: %w", err)
	}
	return true, nil
}

func (s *RedisTriggerStore) Get(ctx context.Context, id string) (*models.Trigger, error) {
	b, err := s.client.Get(ctx, triggerKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	var trig models.Trigger
	if err := json.Unmarshal(b, &trig); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	return &trig, nil
}

func (s *RedisTriggerStore) MarkTriggered(ctx context.Context, id string) error {
	trig, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if trig == nil {
		return fmt.Errorf("trigger %s not found", id)
	}
	if trig.Status != models.TriggerActive {
		return fmt.Errorf("trigger %s is %s, not active", id, trig.Status)
	}
	return s.transition(ctx, trig, models.TriggerTriggered)
}

func (s *RedisTriggerStore) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, activeByExpiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("range due triggers: %w", err)
	}

	n := 0
	for _, id := range ids {
		trig, err := s.Get(ctx, id)
		if err != nil {
			return n, err
		}
		if trig == nil {
			s.client.ZRem(ctx, activeByExpiryKey, id)
			continue
		}
		if trig.Status == models.TriggerActive {
			if err := s.expireOne(ctx, trig); err != nil {
				return n, err
			}
			n++
		} else {
			s.client.ZRem(ctx, activeByExpiryKey, id)
		}
	}
	return n, nil
}

func (s *RedisTriggerStore) ActiveByMarket(ctx context.Context, marketID string) ([]*models.Trigger, error) {
	var out []*models.Trigger
	for _, typ := range models.TriggerTypes() {
		trig, err := s.Active(ctx, marketID, typ)
		if err != nil {
			return nil, err
		}
		if trig != nil {
			out = append(out, trig)
		}
	}
	return out, nil
}

func (s *RedisTriggerStore) expireOne(ctx context.Context, trig *models.Trigger) error {
	return s.transition(ctx, trig, models.TriggerExpired)
}

// transition persists the terminal status and tears down the active
// bookkeeping in one pipeline.
func (s *RedisTriggerStore) transition(ctx context.Context, trig *models.Trigger, status models.TriggerStatus) error {
	trig.Status = status
	b, err := json.Marshal(trig)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, triggerKey(trig.ID), b, 0)
	pipe.Del(ctx, activeMarkerKey(trig.MarketID, trig.Type))
	pipe.ZRem(ctx, activeByExpiryKey, trig.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("transition trigger %s to %s: %w", trig.ID, status, err)
	}
	return nil
}
