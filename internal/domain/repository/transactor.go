package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrTxConflict wraps every transaction failure a caller should answer by
// retrying the whole operation: serialization failures, deadlocks, lock waits
// and timeouts.
var ErrTxConflict = errors.New("transaction conflict")

// Transactor runs fn inside a serializable transaction. fn must use tx for every
// read and write that has to be covered by the transaction.
type Transactor interface {
	Serializable(ctx context.Context, fn func(tx *gorm.DB) error) error
}
