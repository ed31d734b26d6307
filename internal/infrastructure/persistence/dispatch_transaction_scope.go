package persistence

import (
	"context"
	"database/sql"
	"fmt"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"gorm.io/gorm"
)

// GormDispatchTransactionScope implements dispatch.TransactionScope using
// serializable GORM transactions.
type GormDispatchTransactionScope struct {
	db       *gorm.DB
	statuses *sourcing.StatusCatalog
	opts     *sql.TxOptions
}

// NewGormDispatchTransactionScope creates a scope that runs at serializable isolation
func NewGormDispatchTransactionScope(db *gorm.DB, statuses *sourcing.StatusCatalog) *GormDispatchTransactionScope {
	return &GormDispatchTransactionScope{
		db:       db,
		statuses: statuses,
		opts:     &sql.TxOptions{Isolation: sql.LevelSerializable},
	}
}

// Execute runs fn in one transaction. Conflicts raised by the store, at any
// statement or at commit, are reported as sourcing.ErrTransactionConflict.
func (s *GormDispatchTransactionScope) Execute(ctx context.Context, fn func(repos dispatchapp.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormDispatchRepositories{tx: tx, statuses: s.statuses})
	}, s.opts)
	if err != nil && IsTransactionConflict(err) {
		return fmt.Errorf("%w: %v", sourcing.ErrTransactionConflict, err)
	}
	return err
}

// gormDispatchRepositories provides the writers bound to the current transaction
type gormDispatchRepositories struct {
	tx       *gorm.DB
	statuses *sourcing.StatusCatalog
}

// Inquiries returns the inquiry writer scoped to the current transaction
func (r *gormDispatchRepositories) Inquiries() sourcing.InquiryWriter {
	return NewGormInquiryRepository(r.tx, r.statuses)
}

// Batches returns the batch writer scoped to the current transaction
func (r *gormDispatchRepositories) Batches() sourcing.BatchWriter {
	return NewGormDispatchBatchRepository(r.tx)
}

// Ensure GormDispatchTransactionScope implements TransactionScope
var _ dispatchapp.TransactionScope = (*GormDispatchTransactionScope)(nil)

// Ensure gormDispatchRepositories implements TransactionalRepositories
var _ dispatchapp.TransactionalRepositories = (*gormDispatchRepositories)(nil)
