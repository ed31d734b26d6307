package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInquiryRepository implements InquiryRepository and InquiryWriter using GORM.
// The eligibility predicate lives in one scope shared by reads and the
// guarded update, so a selection and its commit can never disagree.
type GormInquiryRepository struct {
	db       *gorm.DB
	statuses *sourcing.StatusCatalog
}

// NewGormInquiryRepository creates a new GormInquiryRepository
func NewGormInquiryRepository(db *gorm.DB, statuses *sourcing.StatusCatalog) *GormInquiryRepository {
	return &GormInquiryRepository{db: db, statuses: statuses}
}

// eligibleScope filters inquiries that may be dispatched in direction.
// A nil counterpartyID matches every counterparty of the direction's kind.
func (r *GormInquiryRepository) eligibleScope(direction sourcing.Direction, counterpartyID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("inquiries.deleted_at IS NULL").
			Where("inquiries.status_id = ?", r.statuses.ID(sourcing.StatusOpen)).
			Where("inquiries.result_id IS NULL").
			Where("NOT EXISTS (SELECT 1 FROM batch_line_links l WHERE l.inquiry_id = inquiries.id AND l.direction = ?)",
				string(direction))

		switch direction {
		case sourcing.DirectionToSupplier:
			db = db.Where("inquiries.to_supplier_date IS NULL")
			if counterpartyID != uuid.Nil {
				db = db.Where("inquiries.supplier_id = ?", counterpartyID)
			} else {
				db = db.Where("inquiries.supplier_id IS NOT NULL")
			}
		case sourcing.DirectionToCustomer:
			db = db.Where("inquiries.to_supplier_date IS NOT NULL").
				Where("inquiries.supplier_offer_date IS NOT NULL").
				Where("inquiries.supplier_price IS NOT NULL").
				Where("inquiries.customer_price IS NOT NULL").
				Where("inquiries.margin IS NOT NULL").
				Where("inquiries.offer_submission_date IS NULL")
			if counterpartyID != uuid.Nil {
				db = db.Where("inquiries.customer_id = ?", counterpartyID)
			}
		default:
			db = db.Where("1 = 0")
		}
		return db
	}
}

// FindEligible returns eligible inquiries ordered by creation time then ID
func (r *GormInquiryRepository) FindEligible(ctx context.Context, query sourcing.EligibilityQuery) ([]sourcing.Inquiry, error) {
	db := r.db.WithContext(ctx).
		Model(&models.InquiryModel{}).
		Scopes(r.eligibleScope(query.Direction, query.CounterpartyID))
	if len(query.InquiryIDs) > 0 {
		db = db.Where("inquiries.id IN ?", query.InquiryIDs)
	}

	var rows []models.InquiryModel
	if err := db.Order("inquiries.created_at ASC, inquiries.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomain(rows), nil
}

// CountEligibleByCounterparty groups eligible inquiries by supplier or customer
func (r *GormInquiryRepository) CountEligibleByCounterparty(ctx context.Context, direction sourcing.Direction) ([]sourcing.CounterpartyCount, error) {
	column := "inquiries.supplier_id"
	if direction == sourcing.DirectionToCustomer {
		column = "inquiries.customer_id"
	}

	var rows []struct {
		CounterpartyID uuid.UUID
		Count          int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.InquiryModel{}).
		Scopes(r.eligibleScope(direction, uuid.Nil)).
		Select(column + " AS counterparty_id, COUNT(*) AS count").
		Group(column).
		Order(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make([]sourcing.CounterpartyCount, len(rows))
	for i, row := range rows {
		counts[i] = sourcing.CounterpartyCount{CounterpartyID: row.CounterpartyID, Count: row.Count}
	}
	return counts, nil
}

// FindByIDs loads inquiries regardless of state
func (r *GormInquiryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]sourcing.Inquiry, error) {
	if len(ids) == 0 {
		return []sourcing.Inquiry{}, nil
	}
	var rows []models.InquiryModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomain(rows), nil
}

// MarkDispatched stamps the dispatch fields on every inquiry in query.InquiryIDs
// that is still eligible. Rows that lost eligibility are left untouched and
// are not counted.
func (r *GormInquiryRepository) MarkDispatched(ctx context.Context, query sourcing.EligibilityQuery, at time.Time) (int64, error) {
	if len(query.InquiryIDs) == 0 {
		return 0, errors.New("mark dispatched requires inquiry IDs")
	}

	updates := map[string]any{"updated_at": at}
	switch query.Direction {
	case sourcing.DirectionToSupplier:
		updates["to_supplier_date"] = at
	case sourcing.DirectionToCustomer:
		updates["offer_submission_date"] = at
		updates["to_customer_offer_date"] = at
		updates["status_id"] = r.statuses.ID(sourcing.StatusSubmitted)
	default:
		return 0, errors.New("unknown dispatch direction: " + string(query.Direction))
	}

	result := r.db.WithContext(ctx).
		Model(&models.InquiryModel{}).
		Scopes(r.eligibleScope(query.Direction, query.CounterpartyID)).
		Where("inquiries.id IN ?", query.InquiryIDs).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormInquiryRepository) toDomain(rows []models.InquiryModel) []sourcing.Inquiry {
	inquiries := make([]sourcing.Inquiry, len(rows))
	for i := range rows {
		inquiries[i] = rows[i].ToDomain(r.statuses)
	}
	return inquiries
}

// Ensure GormInquiryRepository implements the domain interfaces
var (
	_ sourcing.InquiryRepository = (*GormInquiryRepository)(nil)
	_ sourcing.InquiryWriter     = (*GormInquiryRepository)(nil)
)
