package usecase

import (
	"context"
	"sync"
	"time"

	"PolySwarm/internal/domain/models"
)

// In-memory store fakes shared by the usecase tests.

type memSignalStore struct {
	mu      sync.Mutex
	signals map[string]*models.Signal
}

func newMemSignalStore() *memSignalStore {
	return &memSignalStore{signals: make(map[string]*models.Signal)}
}

func (m *memSignalStore) Put(ctx context.Context, s *models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.signals[s.ID] = &cp
	return nil
}

func (m *memSignalStore) Get(ctx context.Context, id string) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSignalStore) LatestSince(ctx context.Context, marketID string, since time.Time) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Signal
	for _, s := range m.signals {
		if s.MarketID != marketID || s.Timestamp.Before(since) {
			continue
		}
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memSignalStore) AppendTrade(ctx context.Context, signalID string, t models.WhaleTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.signals[signalID]
	s.TriggerTrades = append(s.TriggerTrades, t)
	return nil
}

func (m *memSignalStore) Recent(ctx context.Context, marketID string, limit int) ([]*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Signal
	for _, s := range m.signals {
		if s.MarketID == marketID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPriceStore struct {
	mu    sync.Mutex
	snaps []models.PriceSnapshot
}

func (m *memPriceStore) Append(ctx context.Context, snap models.PriceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memPriceStore) Window(ctx context.Context, marketID string, from, to time.Time) ([]models.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceSnapshot
	for _, s := range m.snaps {
		if s.MarketID == marketID && !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memPriceStore) Latest(ctx context.Context, marketID string) (*models.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.PriceSnapshot
	for i := range m.snaps {
		s := &m.snaps[i]
		if s.MarketID != marketID {
			continue
		}
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

type triggerKeyT struct {
	market string
	typ    models.TriggerType
}

type memTriggerStore struct {
	mu     sync.Mutex
	active map[triggerKeyT]*models.Trigger
	byID   map[string]*models.Trigger
	now    func() time.Time
}

func newMemTriggerStore() *memTriggerStore {
	return &memTriggerStore{
		active: make(map[triggerKeyT]*models.Trigger),
		byID:   make(map[string]*models.Trigger),
		now:    time.Now,
	}
}

func (m *memTriggerStore) Active(ctx context.Context, marketID string, typ models.TriggerType) (*models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[triggerKeyT{marketID, typ}]
	if !ok {
		return nil, nil
	}
	if t.ExpiredBy(m.now()) {
		t.Status = models.TriggerExpired
		delete(m.active, triggerKeyT{marketID, typ})
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTriggerStore) CreateIfAbsent(ctx context.Context, t *models.Trigger) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := triggerKeyT{t.MarketID, t.Type}
	if existing, ok := m.active[key]; ok && !existing.ExpiredBy(m.now()) {
		return false, nil
	}
	cp := *t
	m.active[key] = &cp
	m.byID[t.ID] = &cp
	return true, nil
}

func (m *memTriggerStore) Get(ctx context.Context, id string) (*models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTriggerStore) MarkTriggered(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.byID[id]
	t.Status = models.TriggerTriggered
	delete(m.active, triggerKeyT{t.MarketID, t.Type})
	return nil
}

func (m *memTriggerStore) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, t := range m.active {
		if t.ExpiredBy(now) {
			t.Status = models.TriggerExpired
			delete(m.active, key)
			n++
		}
	}
	return n, nil
}

func (m *memTriggerStore) ActiveByMarket(ctx context.Context, marketID string) ([]*models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trigger
	for key, t := range m.active {
		if key.market == marketID && !t.ExpiredBy(m.now()) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memStatsStore struct {
	stats map[string]*models.TraderStats
}

func (m *memStatsStore) Get(ctx context.Context, address string) (*models.TraderStats, error) {
	if m.stats == nil {
		return nil, nil
	}
	return m.stats[address], nil
}
