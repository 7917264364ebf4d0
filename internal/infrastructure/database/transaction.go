package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinic-booking/config"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
)

type gormTransactor struct {
	db          *gorm.DB
	lockTimeout time.Duration
	timeout     time.Duration
}

func NewTransactor(db *gorm.DB, cfg config.TxConfig) domainRepo.Transactor {
	return &gormTransactor{
		db:          db,
		lockTimeout: cfg.LockTimeout,
		timeout:     cfg.Timeout,
	}
}

// Serializable runs fn at SERIALIZABLE isolation with a bounded lock wait and a
// bounded overall duration. Serialization failures, deadlocks, lock and statement
// timeouts come back wrapped in repository.ErrTxConflict.
func (t *gormTransactor) Serializable(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())).Error; err != nil {
			return err
		}
		if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", t.timeout.Milliseconds())).Error; err != nil {
			return err
		}
		return fn(tx)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w: %w", domainRepo.ErrTxConflict, err)
	}
	return err
}

// IsRetryable reports whether err is a transient concurrency failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domainRepo.ErrTxConflict) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable, sqlStateQueryCanceled:
			return true
		}
	}
	return false
}
