package persistence

import (
	"context"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAttachmentRepository implements AttachmentRepository using GORM
type GormAttachmentRepository struct {
	db *gorm.DB
}

// NewGormAttachmentRepository creates a new GormAttachmentRepository
func NewGormAttachmentRepository(db *gorm.DB) *GormAttachmentRepository {
	return &GormAttachmentRepository{db: db}
}

// Save persists a new attachment record
func (r *GormAttachmentRepository) Save(ctx context.Context, attachment *sourcing.Attachment) error {
	return r.db.WithContext(ctx).Create(models.AttachmentModelFromDomain(attachment)).Error
}

// FindByBatch returns the attachments registered for a batch, oldest first
func (r *GormAttachmentRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]sourcing.Attachment, error) {
	var rows []models.AttachmentModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return attachmentsToDomain(rows), nil
}

// FindUnreferencedOlderThan returns preview attachments created before cutoff
func (r *GormAttachmentRepository) FindUnreferencedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]sourcing.Attachment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AttachmentModel
	if err := r.db.WithContext(ctx).
		Where("batch_id IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return attachmentsToDomain(rows), nil
}

// Delete removes an attachment record
func (r *GormAttachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.AttachmentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func attachmentsToDomain(rows []models.AttachmentModel) []sourcing.Attachment {
	attachments := make([]sourcing.Attachment, len(rows))
	for i := range rows {
		attachments[i] = rows[i].ToDomain()
	}
	return attachments
}

// Ensure GormAttachmentRepository implements AttachmentRepository
var _ sourcing.AttachmentRepository = (*GormAttachmentRepository)(nil)
