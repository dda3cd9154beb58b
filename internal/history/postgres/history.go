// Package postgres records every observed points value in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// DefaultTable is the history table used when none is configured.
const DefaultTable = "point_observations"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for history rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// HistoryStore writes observation rows into Postgres.
type HistoryStore struct {
	pool  txPool
	table string
}

// New connects to Postgres and returns a HistoryStore.
func New(ctx context.Context, cfg Config) (*HistoryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = 2
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &HistoryStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool txPool, table string) (*HistoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the history table when it does not exist.
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	sweep_id     TEXT        NOT NULL,
	origin       TEXT        NOT NULL,
	travel_date  TEXT        NOT NULL,
	points_text  TEXT        NOT NULL,
	points_value BIGINT      NOT NULL,
	observed_at  TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

// Record inserts one row per observation in a single transaction.
func (s *HistoryStore) Record(ctx context.Context, sweepID string, observations []points.Observation) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	if sweepID == "" {
		return fmt.Errorf("sweep id is required")
	}
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	sweep_id,
	origin,
	travel_date,
	points_text,
	points_value,
	observed_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, s.table)

	for _, obs := range observations {
		if _, err = tx.Exec(ctx, query,
			sweepID,
			obs.Key.Origin,
			obs.Key.Date,
			obs.Point.RawText,
			obs.Point.Value,
			obs.Point.ObservedAt,
		); err != nil {
			return fmt.Errorf("insert observation %s: %w", obs.Key, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *HistoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var _ points.HistoryRecorder = (*HistoryStore)(nil)
