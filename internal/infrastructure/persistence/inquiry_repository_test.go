package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormInquiryRepository_FindEligible_ToSupplier(t *testing.T) {
	f := setupDispatchTestDB(t)
	repo := NewGormInquiryRepository(f.db, f.statuses)
	ctx := context.Background()

	supplier := f.createSupplier(t, "Acme Valves")
	other := f.createSupplier(t, "Other Co")
	customer := f.createCustomer(t, "Northwind")
	sent := f.base

	first := f.createInquiry(t, &supplier, customer)
	second := f.createInquiry(t, &supplier, customer)
	f.createInquiry(t, &other, customer)
	f.createInquiry(t, &supplier, customer, func(i *sourcing.Inquiry) { i.ToSupplierDate = &sent })
	f.createInquiry(t, &supplier, customer, func(i *sourcing.Inquiry) { i.Status = sourcing.StatusCancelled })
	f.createInquiry(t, &supplier, customer, func(i *sourcing.Inquiry) { i.DeletedAt = &sent })
	f.createInquiry(t, &supplier, customer, func(i *sourcing.Inquiry) {
		result := uuid.New()
		i.ResultID = &result
	})
	linked := f.createInquiry(t, &supplier, customer)
	f.linkInquiry(t, linked.ID, sourcing.DirectionToSupplier)

	t.Run("returns only eligible inquiries in creation order", func(t *testing.T) {
		found, err := repo.FindEligible(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: supplier,
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID}, idsOf(found))
		assert.Equal(t, sourcing.StatusOpen, found[0].Status)
	})

	t.Run("narrows to requested IDs", func(t *testing.T) {
		found, err := repo.FindEligible(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: supplier,
			InquiryIDs:     []uuid.UUID{second.ID, linked.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{second.ID}, idsOf(found))
	})

	t.Run("link in the other direction does not exclude", func(t *testing.T) {
		f.linkInquiry(t, first.ID, sourcing.DirectionToCustomer)
		found, err := repo.FindEligible(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: supplier,
		})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}

func TestGormInquiryRepository_FindEligible_ToCustomer(t *testing.T) {
	f := setupDispatchTestDB(t)
	repo := NewGormInquiryRepository(f.db, f.statuses)
	ctx := context.Background()

	supplier := f.createSupplier(t, "Acme Valves")
	customer := f.createCustomer(t, "Northwind")

	ready := f.createInquiry(t, &supplier, customer, priced(f.base))
	f.createInquiry(t, &supplier, customer)
	f.createInquiry(t, &supplier, customer, priced(f.base), func(i *sourcing.Inquiry) { i.Margin = nil })
	f.createInquiry(t, &supplier, customer, priced(f.base), func(i *sourcing.Inquiry) {
		at := f.base
		i.OfferSubmissionDate = &at
	})

	found, err := repo.FindEligible(ctx, sourcing.EligibilityQuery{
		Direction:      sourcing.DirectionToCustomer,
		CounterpartyID: customer,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ready.ID, found[0].ID)
	require.NotNil(t, found[0].CustomerPrice)
	assert.Equal(t, "10.25", found[0].CustomerPrice.StringFixed(2))
}

func TestGormInquiryRepository_CountEligibleByCounterparty(t *testing.T) {
	f := setupDispatchTestDB(t)
	repo := NewGormInquiryRepository(f.db, f.statuses)
	ctx := context.Background()

	a := f.createSupplier(t, "A")
	b := f.createSupplier(t, "B")
	customer := f.createCustomer(t, "Northwind")

	f.createInquiry(t, &a, customer)
	f.createInquiry(t, &a, customer)
	f.createInquiry(t, &b, customer)
	f.createInquiry(t, nil, customer)

	counts, err := repo.CountEligibleByCounterparty(ctx, sourcing.DirectionToSupplier)
	require.NoError(t, err)

	byID := map[uuid.UUID]int64{}
	for _, c := range counts {
		byID[c.CounterpartyID] = c.Count
	}
	assert.Equal(t, map[uuid.UUID]int64{a: 2, b: 1}, byID)

	counts, err = repo.CountEligibleByCounterparty(ctx, sourcing.DirectionToCustomer)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestGormInquiryRepository_MarkDispatched(t *testing.T) {
	f := setupDispatchTestDB(t)
	repo := NewGormInquiryRepository(f.db, f.statuses)
	ctx := context.Background()
	at := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	supplier := f.createSupplier(t, "Acme Valves")
	customer := f.createCustomer(t, "Northwind")

	t.Run("stamps to-supplier date once", func(t *testing.T) {
		a := f.createInquiry(t, &supplier, customer)
		b := f.createInquiry(t, &supplier, customer)
		query := sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToSupplier,
			CounterpartyID: supplier,
			InquiryIDs:     []uuid.UUID{a.ID, b.ID},
		}

		n, err := repo.MarkDispatched(ctx, query, at)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.MarkDispatched(ctx, query, at)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		loaded, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID})
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		require.NotNil(t, loaded[0].ToSupplierDate)
		assert.True(t, loaded[0].ToSupplierDate.Equal(at))
		assert.Equal(t, sourcing.StatusOpen, loaded[0].Status)
	})

	t.Run("submits to customer and advances status", func(t *testing.T) {
		inq := f.createInquiry(t, &supplier, customer, priced(f.base))
		n, err := repo.MarkDispatched(ctx, sourcing.EligibilityQuery{
			Direction:      sourcing.DirectionToCustomer,
			CounterpartyID: customer,
			InquiryIDs:     []uuid.UUID{inq.ID},
		}, at)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		loaded, err := repo.FindByIDs(ctx, []uuid.UUID{inq.ID})
		require.NoError(t, err)
		assert.Equal(t, sourcing.StatusSubmitted, loaded[0].Status)
		require.NotNil(t, loaded[0].OfferSubmissionDate)
		require.NotNil(t, loaded[0].ToCustomerOfferDate)
	})

	t.Run("rejects empty ID list", func(t *testing.T) {
		_, err := repo.MarkDispatched(ctx, sourcing.EligibilityQuery{Direction: sourcing.DirectionToSupplier}, at)
		assert.Error(t, err)
	})
}

func TestGormInquiryRepository_FindByIDs_IncludesDeleted(t *testing.T) {
	f := setupDispatchTestDB(t)
	repo := NewGormInquiryRepository(f.db, f.statuses)

	supplier := f.createSupplier(t, "Acme Valves")
	customer := f.createCustomer(t, "Northwind")
	deleted := f.base
	inq := f.createInquiry(t, &supplier, customer, func(i *sourcing.Inquiry) { i.DeletedAt = &deleted })

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{inq.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, found[0].IsActive())

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
