package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metrics receives batch execution events. The observability collector
// implements this; a nil Metrics is valid.
type Metrics interface {
	BatchExecuted(queries int, failed int, duration time.Duration)
	BatchTransaction(queries int, committed bool, duration time.Duration)
}

// BatchQuery is one pending query, correlated back to the caller by ID.
type BatchQuery struct {
	ID     string
	Query  string
	Params []any
}

// Result is the outcome of one query within a batch. Exactly one of Rows
// and Err is meaningful.
type Result struct {
	Rows []Row
	Err  error
}

// TxResult is the outcome of a transactional batch.
type TxResult struct {
	Success bool
	Results map[string][]Row
	Err     error
}

// Batcher collects independent parameterized queries and executes them
// in one round: concurrently with per-query failure isolation, or
// sequentially inside a single transaction. Query IDs must be unique
// within one batch; results are correlated by ID, never by position.
//
// A Batcher is not safe for concurrent Add calls; build one per request.
type Batcher struct {
	db      DB
	pending []BatchQuery
	logger  *zap.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithBatchMetrics attaches a metrics sink.
func WithBatchMetrics(m Metrics) BatcherOption {
	return func(b *Batcher) { b.metrics = m }
}

// NewBatcher creates a batcher over db.
func NewBatcher(db DB, logger *zap.Logger, opts ...BatcherOption) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Batcher{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("commerce-backend/persistence"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends one query to the pending batch. Chainable.
func (b *Batcher) Add(id, query string, params ...any) *Batcher {
	b.pending = append(b.pending, BatchQuery{ID: id, Query: query, Params: params})
	return b
}

// Len returns the number of pending queries.
func (b *Batcher) Len() int {
	return len(b.pending)
}

// Execute runs every pending query concurrently. Each query's failure is
// isolated to its own slot: one bad query never aborts its siblings. The
// pending batch is cleared afterward.
func (b *Batcher) Execute(ctx context.Context) map[string]Result {
	if len(b.pending) == 0 {
		return map[string]Result{}
	}

	ctx, span := b.tracer.Start(ctx, "batcher.Execute",
		trace.WithAttributes(attribute.Int("batch.size", len(b.pending))))
	defer span.End()

	queries := b.pending
	b.pending = nil

	start := time.Now()
	results := make([]Result, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q BatchQuery) {
			defer wg.Done()
			rows, err := b.db.Query(ctx, q.Query, q.Params...)
			if err != nil {
				results[i] = Result{Err: fmt.Errorf("batch query %q: %w", q.ID, err)}
				return
			}
			results[i] = Result{Rows: rows}
		}(i, q)
	}
	wg.Wait()

	out := make(map[string]Result, len(queries))
	failed := 0
	for i, q := range queries {
		if results[i].Err != nil {
			failed++
			b.logger.Warn("Batch query failed",
				zap.String("id", q.ID),
				zap.Error(results[i].Err),
			)
		}
		out[q.ID] = results[i]
	}

	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.BatchExecuted(len(queries), failed, duration)
	}
	b.logger.Debug("Batch executed",
		zap.Int("queries", len(queries)),
		zap.Int("failed", failed),
		zap.Duration("duration", duration),
	)
	return out
}

// ExecuteInTransaction runs every pending query sequentially inside one
// transaction. Any failure rolls the whole batch back. The pending batch
// is cleared afterward in either case.
func (b *Batcher) ExecuteInTransaction(ctx context.Context) TxResult {
	if len(b.pending) == 0 {
		return TxResult{Success: true, Results: map[string][]Row{}}
	}

	ctx, span := b.tracer.Start(ctx, "batcher.ExecuteInTransaction",
		trace.WithAttributes(attribute.Int("batch.size", len(b.pending))))
	defer span.End()

	queries := b.pending
	b.pending = nil

	start := time.Now()

	tx, err := b.db.Begin(ctx)
	if err != nil {
		return TxResult{Err: fmt.Errorf("begin batch transaction: %w", err)}
	}

	results := make(map[string][]Row, len(queries))
	for _, q := range queries {
		rows, err := tx.Query(ctx, q.Query, q.Params...)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				b.logger.Error("Batch rollback failed",
					zap.String("id", q.ID),
					zap.Error(rbErr),
				)
			}
			if b.metrics != nil {
				b.metrics.BatchTransaction(len(queries), false, time.Since(start))
			}
			return TxResult{Err: fmt.Errorf("batch query %q: %w", q.ID, err)}
		}
		results[q.ID] = rows
	}

	if err := tx.Commit(ctx); err != nil {
		if b.metrics != nil {
			b.metrics.BatchTransaction(len(queries), false, time.Since(start))
		}
		return TxResult{Err: fmt.Errorf("commit batch transaction: %w", err)}
	}

	if b.metrics != nil {
		b.metrics.BatchTransaction(len(queries), true, time.Since(start))
	}
	return TxResult{Success: true, Results: results}
}
