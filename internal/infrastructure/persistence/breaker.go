package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	appErrors "commerce-backend/pkg/errors"
)

// BreakerDB decorates a DB with a circuit breaker on the read path, so a
// struggling database sheds cache-miss load instead of queueing it.
// Transactions pass through: write paths decide their own fate.
type BreakerDB struct {
	inner   DB
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerDB wraps db with a circuit breaker.
func NewBreakerDB(db DB, logger *zap.Logger) *BreakerDB {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "database",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Database circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerDB{
		inner:   db,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Query runs the query through the breaker. When the circuit is open the
// call is rejected without touching the database.
func (b *BreakerDB) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.Query(ctx, sql, args...)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, appErrors.NewUnavailable("database circuit open", err)
		}
		return nil, err
	}
	return result.([]Row), nil
}

// Begin passes through to the wrapped DB.
func (b *BreakerDB) Begin(ctx context.Context) (Tx, error) {
	return b.inner.Begin(ctx)
}
