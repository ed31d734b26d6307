package persistence

import (
	"testing"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// dispatchFixture is an in-memory schema with seeded status rows
type dispatchFixture struct {
	db       *gorm.DB
	statuses *sourcing.StatusCatalog
	base     time.Time
	seq      int
}

func setupDispatchTestDB(t *testing.T) *dispatchFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// one connection keeps every statement on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))

	ids := map[sourcing.InquiryStatus]uuid.UUID{}
	for status, name := range sourcing.DefaultStatusNames() {
		row := models.InquiryStatusModel{ID: uuid.New(), Name: name}
		require.NoError(t, db.Create(&row).Error)
		ids[status] = row.ID
	}

	return &dispatchFixture{
		db:       db,
		statuses: sourcing.MustStatusCatalog(ids),
		base:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func (f *dispatchFixture) createSupplier(t *testing.T, name string) uuid.UUID {
	t.Helper()
	row := models.SupplierModel{ID: uuid.New(), Name: name}
	require.NoError(t, f.db.Create(&row).Error)
	return row.ID
}

func (f *dispatchFixture) createCustomer(t *testing.T, name string) uuid.UUID {
	t.Helper()
	row := models.CustomerModel{ID: uuid.New(), Name: name}
	require.NoError(t, f.db.Create(&row).Error)
	return row.ID
}

// createInquiry inserts an open inquiry; each call is one minute newer than the last
func (f *dispatchFixture) createInquiry(t *testing.T, supplierID *uuid.UUID, customerID uuid.UUID, mutate ...func(*sourcing.Inquiry)) sourcing.Inquiry {
	t.Helper()
	f.seq++
	created := f.base.Add(time.Duration(f.seq) * time.Minute)
	inq := sourcing.Inquiry{
		InquiryNumber: "INQ-" + uuid.NewString()[:8],
		Status:        sourcing.StatusOpen,
		SupplierID:    supplierID,
		CustomerID:    customerID,
		ProductName:   "Gate valve",
		Quantity:      decimal.NewFromInt(4),
		Unit:          "pcs",
	}
	inq.ID = uuid.New()
	inq.CreatedAt = created
	inq.UpdatedAt = created
	for _, m := range mutate {
		m(&inq)
	}
	require.NoError(t, f.db.Create(models.InquiryModelFromDomain(&inq, f.statuses)).Error)
	return inq
}

func (f *dispatchFixture) linkInquiry(t *testing.T, inquiryID uuid.UUID, direction sourcing.Direction) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.BatchLineLinkModel{
		BatchID:   uuid.New(),
		InquiryID: inquiryID,
		Direction: direction,
		LineNo:    1,
	}).Error)
}

// priced fills every field the customer direction requires
func priced(at time.Time) func(*sourcing.Inquiry) {
	return func(i *sourcing.Inquiry) {
		sp := decimal.RequireFromString("8.50")
		cp := decimal.RequireFromString("10.25")
		margin := cp.Sub(sp)
		i.ToSupplierDate = &at
		i.SupplierOfferDate = &at
		i.SupplierPrice = &sp
		i.CustomerPrice = &cp
		i.Margin = &margin
	}
}

func idsOf(inquiries []sourcing.Inquiry) []uuid.UUID {
	ids := make([]uuid.UUID, len(inquiries))
	for i, inq := range inquiries {
		ids[i] = inq.ID
	}
	return ids
}
