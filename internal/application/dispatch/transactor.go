package dispatch

import (
	"context"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommitInput is a validated dispatch ready to be locked in
type CommitInput struct {
	Direction      sourcing.Direction
	CounterpartyID uuid.UUID
	Inquiries      []sourcing.Inquiry // in line order
	Remarks        string
	Actor          uuid.UUID
}

// Transactor stamps inquiries and creates their batch atomically
type Transactor struct {
	scope  TransactionScope
	logger *zap.Logger
	now    func() time.Time
}

// NewTransactor creates a new Transactor
func NewTransactor(scope TransactionScope, logger *zap.Logger) *Transactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{scope: scope, logger: logger, now: time.Now}
}

// Commit runs the guarded inquiry update and the batch insert in one
// serializable transaction. If any inquiry stopped being eligible since it
// was selected the whole unit rolls back with sourcing.ErrTransactionConflict.
func (t *Transactor) Commit(ctx context.Context, in *CommitInput) (*sourcing.DispatchBatch, error) {
	now := t.now()
	batch, err := sourcing.NewDispatchBatch(in.Direction, in.CounterpartyID, in.Inquiries, in.Remarks, in.Actor, now)
	if err != nil {
		return nil, err
	}

	err = t.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		updated, err := repos.Inquiries().MarkDispatched(ctx, sourcing.EligibilityQuery{
			Direction:      in.Direction,
			CounterpartyID: in.CounterpartyID,
			InquiryIDs:     batch.InquiryIDs(),
		}, now)
		if err != nil {
			return err
		}
		if updated != int64(len(batch.Lines)) {
			t.logger.Info("Dispatch lost a race for its inquiries",
				zap.String("direction", string(in.Direction)),
				zap.Int64("updated", updated),
				zap.Int("requested", len(batch.Lines)))
			return sourcing.ErrTransactionConflict
		}
		return repos.Batches().Create(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}
