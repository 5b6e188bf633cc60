package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: decisions, rule stats, rule candidates",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS decisions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					payee TEXT NOT NULL,
					category TEXT,
					labels TEXT,
					source TEXT NOT NULL,
					confidence INTEGER DEFAULT 0,
					action TEXT NOT NULL,
					reasoning TEXT,
					decided_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_decisions_transaction ON decisions(transaction_id)`,
				`CREATE INDEX idx_decisions_decided_at ON decisions(decided_at)`,

				`CREATE TABLE IF NOT EXISTS rule_stats (
					rule_name TEXT PRIMARY KEY,
					match_count INTEGER DEFAULT 0,
					last_matched_at DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS rule_candidates (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					pattern TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence INTEGER NOT NULL,
					transaction_id TEXT,
					payee TEXT,
					reasoning TEXT,
					proposed_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "CGT lots and events",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS lots (
					id INTEGER PRIMARY KEY,
					asset_type TEXT NOT NULL,
					asset TEXT NOT NULL,
					quantity REAL NOT NULL,
					remaining REAL NOT NULL,
					acquired_at DATETIME NOT NULL,
					unit_cost REAL NOT NULL,
					fees REAL DEFAULT 0,
					exhausted INTEGER DEFAULT 0
				)`,
				`CREATE INDEX idx_lots_asset ON lots(asset_type, asset, acquired_at)`,

				`CREATE TABLE IF NOT EXISTS cgt_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					asset_type TEXT NOT NULL,
					asset TEXT NOT NULL,
					sale_date DATETIME NOT NULL,
					quantity REAL NOT NULL,
					unit_price REAL NOT NULL,
					fees REAL DEFAULT 0,
					proceeds REAL NOT NULL,
					cost_base REAL NOT NULL,
					gain REAL NOT NULL,
					parcels TEXT NOT NULL
				)`,
				`CREATE INDEX idx_cgt_events_sale_date ON cgt_events(sale_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_versions (version, description) VALUES (?, ?)`,
			migration.Version, migration.Description); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
