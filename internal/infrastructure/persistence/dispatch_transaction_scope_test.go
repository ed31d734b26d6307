package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDispatchTransactionScope_Commit(t *testing.T) {
	f := setupDispatchTestDB(t)
	scope := NewGormDispatchTransactionScope(f.db, f.statuses)
	ctx := context.Background()

	supplier := f.createSupplier(t, "Acme Valves")
	customer := f.createCustomer(t, "Northwind")
	inq := f.createInquiry(t, &supplier, customer)

	batch, err := sourcing.NewDispatchBatch(sourcing.DirectionToSupplier, supplier,
		[]sourcing.Inquiry{inq}, "", uuid.New(), f.base)
	require.NoError(t, err)

	err = scope.Execute(ctx, func(repos dispatchapp.TransactionalRepositories) error {
		n, err := repos.Inquiries().MarkDispatched(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: supplier,
			InquiryIDs:     batch.InquiryIDs(),
		}, f.base)
		if err != nil {
			return err
		}
		require.Equal(t, int64(1), n)
		return repos.Batches().Create(ctx, batch)
	})
	require.NoError(t, err)

	_, err = NewGormDispatchBatchRepository(f.db).FindByID(ctx, batch.ID)
	assert.NoError(t, err)
}

func TestGormDispatchTransactionScope_RollbackOnError(t *testing.T) {
	f := setupDispatchTestDB(t)
	scope := NewGormDispatchTransactionScope(f.db, f.statuses)
	ctx := context.Background()

	supplier := f.createSupplier(t, "Acme Valves")
	customer := f.createCustomer(t, "Northwind")
	inq := f.createInquiry(t, &supplier, customer)
	boom := errors.New("boom")

	err := scope.Execute(ctx, func(repos dispatchapp.TransactionalRepositories) error {
		if _, err := repos.Inquiries().MarkDispatched(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: supplier,
			InquiryIDs:     []uuid.UUID{inq.ID},
		}, f.base); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := NewGormInquiryRepository(f.db, f.statuses).FindEligible(ctx, sourcing.EligibilityQuery{
		Direction:      sourcing.DirectionToSupplier,
		CounterpartyID: supplier,
	})
	require.NoError(t, err)
	assert.Len(t, found, 1, "update must roll back")
}

func TestGormDispatchTransactionScope_SerializationFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	statuses := sourcing.MustStatusCatalog(map[sourcing.InquiryStatus]uuid.UUID{
		sourcing.StatusOpen:      uuid.New(),
		sourcing.StatusSubmitted: uuid.New(),
		sourcing.StatusCancelled: uuid.New(),
		sourcing.StatusClosed:    uuid.New(),
	})
	scope := NewGormDispatchTransactionScope(db.DB, statuses)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "inquiries"`).WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	err := scope.Execute(ctx, func(repos dispatchapp.TransactionalRepositories) error {
		_, err := repos.Inquiries().MarkDispatched(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: uuid.New(),
			InquiryIDs:     []uuid.UUID{uuid.New()},
		}, time.Now())
		return err
	})
	assert.ErrorIs(t, err, sourcing.ErrTransactionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"other pg error", &pgconn.PgError{Code: "23503"}, false},
		{"lib/pq serialization failure", &pq.Error{Code: "40001"}, true},
		{"sqlite unique", errors.New("UNIQUE constraint failed: batch_line_links.inquiry_id"), true},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransactionConflict(tt.err))
		})
	}
}
