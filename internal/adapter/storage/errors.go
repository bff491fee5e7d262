package storage

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

var (
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrDuplicateCart  = errors.New("customer already has an active cart")
)

// MySQL server error numbers that mean a concurrent writer won.
const (
	mysqlErrDuplicateEntry  uint16 = 1062
	mysqlErrLockWaitTimeout uint16 = 1205
	mysqlErrDeadlock        uint16 = 1213
)

// mapMySQLError turns lock and uniqueness failures into retryable conflicts.
func mapMySQLError(resource string, err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case mysqlErrDeadlock, mysqlErrLockWaitTimeout, mysqlErrDuplicateEntry:
		return &domain.ConflictError{Resource: resource, Err: err}
	default:
		return err
	}
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}
