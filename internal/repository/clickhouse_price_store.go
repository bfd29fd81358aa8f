package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PolySwarm/internal/domain/models"
	"PolySwarm/internal/domain/repository"
)

// PriceSchema creates the append-only snapshot table. Passed to the
// clickhouse client's schema init at startup.
var PriceSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_snapshots (
		market_id String,
		price     Float64,
		ts        DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (market_id, ts)`,
}

// ClickHousePriceStore keeps the price time series in ClickHouse.
type ClickHousePriceStore struct {
	db    *sql.DB
	table string
}

func NewClickHousePriceStore(db *sql.DB) repository.PriceStore {
	return &ClickHousePriceStore{db: db, table: "price_snapshots"}
}

func (s *ClickHousePriceStore) Append(ctx context.Context, snap models.PriceSnapshot) error {
	q := fmt.Sprintf("INSERT INTO %s (market_id, price, ts) VALUES (?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, snap.MarketID, snap.Price, snap.Timestamp); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *ClickHousePriceStore) Window(ctx context.Context, marketID string, from, to time.Time) ([]models.PriceSnapshot, error) {
	q := fmt.Sprintf("SELECT market_id, price, ts FROM %s WHERE market_id = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC", s.table)
	rows, err := s.db.QueryContext(ctx, q, marketID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []models.PriceSnapshot
	for rows.Next() {
		var snap models.PriceSnapshot
		if err := rows.Scan(&snap.MarketID, &snap.Price, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *ClickHousePriceStore) Latest(ctx context.Context, marketID string) (*models.PriceSnapshot, error) {
	q := fmt.Sprintf("SELECT market_id, price, ts FROM %s WHERE market_id = ? ORDER BY ts DESC LIMIT 1", s.table)
	var snap models.PriceSnapshot
	err := s.db.QueryRowContext(ctx, q, marketID).Scan(&snap.MarketID, &snap.Price, &snap.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	return &snap, nil
}
