package dispatch

import (
	"context"

	"github.com/erp/sourcing/internal/domain/sourcing"
)

// TransactionalRepositories exposes the writers that must change together
// when a batch is committed.
type TransactionalRepositories interface {
	Inquiries() sourcing.InquiryWriter
	Batches() sourcing.BatchWriter
}

// TransactionScope runs fn in a single serializable transaction.
// Implementations report store-level serialization failures and
// duplicate batch lines as sourcing.ErrTransactionConflict.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}
