package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/metrics"
	"github.com/jwalitptl/leadsla/pkg/validator"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db        *sqlx.DB
	metrics   *metrics.Metrics
	validator validator.Validator
}

// NewBaseRepository creates a new base repository. m may be nil.
func NewBaseRepository(db *sqlx.DB, m *metrics.Metrics) *BaseRepository {
	return &BaseRepository{
		db:        db,
		metrics:   m,
		validator: validator.New(),
	}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// observe records latency and outcome for op and converts driver errors
// into store errors. sql.ErrNoRows becomes a not-found for resource.
func (r *BaseRepository) observe(op, resource string, start time.Time, err error) error {
	if r.metrics != nil {
		r.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	if errors.Is(err, sql.ErrNoRows) {
		if r.metrics != nil {
			r.metrics.ObserveDB(op, nil)
		}
		return apperrors.NotFound(resource, err)
	}
	if r.metrics != nil {
		r.metrics.ObserveDB(op, err)
	}
	if err != nil {
		return apperrors.Store(op, err)
	}
	return nil
}
