package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ozbooks/agent-smith/internal/model"
)

// SaveLot inserts or updates a lot. Lots keep their tracker-assigned ids so
// CGT parcels stay traceable to specific acquisitions across restarts.
func (s *SQLiteStorage) SaveLot(ctx context.Context, lot *model.AssetLot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lots (id, asset_type, asset, quantity, remaining, acquired_at, unit_cost, fees, exhausted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remaining = excluded.remaining,
			exhausted = excluded.exhausted`,
		lot.ID, lot.AssetType, lot.Asset, lot.Quantity, lot.Remaining,
		lot.AcquiredAt, lot.UnitCost, lot.Fees, lot.Exhausted)
	if err != nil {
		return fmt.Errorf("failed to save lot: %w", err)
	}
	return nil
}

// GetAllLots returns every tracked lot in acquisition order. Trackers are
// always rebuilt from the full ledger so lot ids stay unique across assets;
// per-asset slicing happens in memory where the queue key includes the
// asset type.
func (s *SQLiteStorage) GetAllLots(ctx context.Context) ([]model.AssetLot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_type, asset, quantity, remaining, acquired_at, unit_cost, fees, exhausted
		FROM lots ORDER BY acquired_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lots []model.AssetLot
	for rows.Next() {
		var lot model.AssetLot
		if err := rows.Scan(&lot.ID, &lot.AssetType, &lot.Asset, &lot.Quantity,
			&lot.Remaining, &lot.AcquiredAt, &lot.UnitCost, &lot.Fees, &lot.Exhausted); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}

	return lots, rows.Err()
}

// SaveCGTEvent appends an immutable sale record. Parcels are stored as
// JSON: they are audit payload, never queried relationally.
func (s *SQLiteStorage) SaveCGTEvent(ctx context.Context, event *model.CGTEvent) error {
	parcels, err := json.Marshal(event.Parcels)
	if err != nil {
		return fmt.Errorf("failed to marshal parcels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cgt_events (asset_type, asset, sale_date, quantity, unit_price, fees, proceeds, cost_base, gain, parcels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.AssetType, event.Asset, event.SaleDate, event.Quantity,
		event.UnitPrice, event.Fees, event.Proceeds, event.CostBase, event.Gain, string(parcels))
	if err != nil {
		return fmt.Errorf("failed to save CGT event: %w", err)
	}
	return nil
}

// GetCGTEvents returns sale events in [start, end] in sale order.
func (s *SQLiteStorage) GetCGTEvents(ctx context.Context, start, end time.Time) ([]model.CGTEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_type, asset, sale_date, quantity, unit_price, fees, proceeds, cost_base, gain, parcels
		FROM cgt_events
		WHERE sale_date >= ? AND sale_date <= ?
		ORDER BY sale_date`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query CGT events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.CGTEvent
	for rows.Next() {
		var event model.CGTEvent
		var parcels string
		if err := rows.Scan(&event.AssetType, &event.Asset, &event.SaleDate, &event.Quantity,
			&event.UnitPrice, &event.Fees, &event.Proceeds, &event.CostBase, &event.Gain, &parcels); err != nil {
			return nil, fmt.Errorf("failed to scan CGT event: %w", err)
		}
		if err := json.Unmarshal([]byte(parcels), &event.Parcels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parcels: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
