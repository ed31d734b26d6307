package persistence

import (
	"context"
	"errors"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCounterpartyRepository reads suppliers and customers
type GormCounterpartyRepository struct {
	db *gorm.DB
}

// NewGormCounterpartyRepository creates a new GormCounterpartyRepository
func NewGormCounterpartyRepository(db *gorm.DB) *GormCounterpartyRepository {
	return &GormCounterpartyRepository{db: db}
}

type counterpartyRow struct {
	ID   uuid.UUID
	Name string
}

func counterpartyTable(direction sourcing.Direction) string {
	if direction == sourcing.DirectionToCustomer {
		return models.CustomerModel{}.TableName()
	}
	return models.SupplierModel{}.TableName()
}

// FindCounterparty returns the supplier or customer addressed by direction
func (r *GormCounterpartyRepository) FindCounterparty(ctx context.Context, direction sourcing.Direction, id uuid.UUID) (*sourcing.Counterparty, error) {
	var row counterpartyRow
	err := r.db.WithContext(ctx).
		Table(counterpartyTable(direction)).
		Select("id, name").
		Where("id = ? AND deleted_at IS NULL", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Counterparty not found")
		}
		return nil, err
	}
	return &sourcing.Counterparty{
		ID:   row.ID,
		Kind: direction.CounterpartyKind(),
		Name: row.Name,
	}, nil
}

// FindNames resolves counterparty display names, including deleted ones
func (r *GormCounterpartyRepository) FindNames(ctx context.Context, direction sourcing.Direction, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []counterpartyRow
	if err := r.db.WithContext(ctx).
		Table(counterpartyTable(direction)).
		Select("id, name").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// GormStaffRepository reads internal users
type GormStaffRepository struct {
	db *gorm.DB
}

// NewGormStaffRepository creates a new GormStaffRepository
func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

// FindByIDs returns the users with the given IDs; unknown IDs are skipped
func (r *GormStaffRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]sourcing.StaffMember, error) {
	if len(ids) == 0 {
		return []sourcing.StaffMember{}, nil
	}
	var rows []models.StaffModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	staff := make([]sourcing.StaffMember, len(rows))
	for i := range rows {
		staff[i] = rows[i].ToDomain()
	}
	return staff, nil
}

// GormStatusRepository reads the inquiry status lookup table
type GormStatusRepository struct {
	db *gorm.DB
}

// NewGormStatusRepository creates a new GormStatusRepository
func NewGormStatusRepository(db *gorm.DB) *GormStatusRepository {
	return &GormStatusRepository{db: db}
}

// FindAll returns every status row
func (r *GormStatusRepository) FindAll(ctx context.Context) ([]sourcing.StatusRow, error) {
	var rows []models.InquiryStatusModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	statuses := make([]sourcing.StatusRow, len(rows))
	for i := range rows {
		statuses[i] = rows[i].ToDomain()
	}
	return statuses, nil
}

// Ensure lookup repositories implement the domain interfaces
var (
	_ sourcing.CounterpartyRepository = (*GormCounterpartyRepository)(nil)
	_ sourcing.StaffRepository        = (*GormStaffRepository)(nil)
	_ sourcing.StatusRepository       = (*GormStatusRepository)(nil)
)
