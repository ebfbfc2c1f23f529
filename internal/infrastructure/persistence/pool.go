// Package persistence provides the relational backing-store abstraction
// the cache layer reads through: a minimal querier interface over a pgx
// pool, a circuit-breaker decorator, and the query batcher with its
// multi-row SQL builders.
package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Querier executes one parameterized query and returns its rows. The
// cache and batcher treat the backing store purely through this.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
}

// Tx is an open transaction. Rollback after Commit is a no-op.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is a Querier that can also open transactions.
type DB interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

// PgxPool adapts a pgxpool.Pool to the DB interface.
type PgxPool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// PoolConfig holds the connection settings for a PgxPool.
type PoolConfig struct {
	URL              string
	MaxConns         int32
	MinConns         int32
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
}

// parsePoolConfig translates PoolConfig into pgx pool settings. The
// statement timeout becomes a server-side session parameter, in
// milliseconds.
func parsePoolConfig(cfg PoolConfig) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		config.MinConns = cfg.MinConns
	}
	if cfg.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.StatementTimeout > 0 {
		config.ConnConfig.RuntimeParams["statement_timeout"] =
			strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return config, nil
}

// NewPgxPool connects a pool using the given settings.
func NewPgxPool(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*PgxPool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config, err := parsePoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Info("Database pool connected",
		zap.String("database", config.ConnConfig.Database),
		zap.Int32("maxConns", config.MaxConns),
	)
	return &PgxPool{pool: pool, logger: logger}, nil
}

// Query runs one query on the pool and materializes all rows.
func (p *PgxPool) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// Begin opens a transaction. The caller must commit or roll back.
func (p *PgxPool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgxTx{tx: tx}, nil
}

// Ping verifies connectivity, for health checks.
func (p *PgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *PgxPool) Close() {
	p.pool.Close()
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// collectRows drains a pgx row set into column-keyed maps.
func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]Row, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
