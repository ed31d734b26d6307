package persistence

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostgreSQL error codes treated as a lost dispatch race
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// IsTransactionConflict reports whether err means a concurrent transaction
// won: a serialization failure, a deadlock, or a duplicate batch line.
func IsTransactionConflict(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isConflictCode(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isConflictCode(string(pqErr.Code))
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// sqlite reports constraint violations only through the message text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isConflictCode(code string) bool {
	switch code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateUniqueViolation:
		return true
	default:
		return false
	}
}
