package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDispatchBatchRepository implements DispatchBatchRepository and BatchWriter using GORM
type GormDispatchBatchRepository struct {
	db *gorm.DB
}

// NewGormDispatchBatchRepository creates a new GormDispatchBatchRepository
func NewGormDispatchBatchRepository(db *gorm.DB) *GormDispatchBatchRepository {
	return &GormDispatchBatchRepository{db: db}
}

// Create inserts the batch header and its lines. Callers obtain this writer
// from a transaction scope so both inserts commit together.
func (r *GormDispatchBatchRepository) Create(ctx context.Context, batch *sourcing.DispatchBatch) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(models.DispatchBatchModelFromDomain(batch)).Error; err != nil {
		return err
	}
	if len(batch.Lines) == 0 {
		return nil
	}

	lines := make([]models.BatchLineLinkModel, len(batch.Lines))
	for i, line := range batch.Lines {
		lines[i] = models.BatchLineLinkModel{
			BatchID:   batch.ID,
			InquiryID: line.InquiryID,
			Direction: line.Direction,
			LineNo:    line.LineNo,
		}
	}
	return db.Create(&lines).Error
}

// FindByID loads a batch and its lines in line order
func (r *GormDispatchBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*sourcing.DispatchBatch, error) {
	var model models.DispatchBatchModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Dispatch batch not found")
		}
		return nil, err
	}

	var lines []models.BatchLineLinkModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", id).
		Order("line_no ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(lines), nil
}

// UpdateDeliveryFlags stores the channel outcome of the original send
func (r *GormDispatchBatchRepository) UpdateDeliveryFlags(ctx context.Context, id uuid.UUID, emailSent, messageSent bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.DispatchBatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email_sent":   emailSent,
			"message_sent": messageSent,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindResendHistory lists resend entries oldest first
func (r *GormDispatchBatchRepository) FindResendHistory(ctx context.Context, batchID uuid.UUID) ([]sourcing.ResendHistoryEntry, error) {
	var rows []models.ResendHistoryModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]sourcing.ResendHistoryEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// AppendResend inserts the history entry and stamps the batch in one transaction
func (r *GormDispatchBatchRepository) AppendResend(ctx context.Context, entry *sourcing.ResendHistoryEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DispatchBatchModel{}).
			Where("id = ?", entry.BatchID).
			Updates(map[string]any{
				"last_resend_at": entry.CreatedAt,
				"updated_by":     entry.CreatedBy,
				"updated_at":     entry.CreatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		return tx.Create(&models.ResendHistoryModel{
			ID:          entry.ID,
			BatchID:     entry.BatchID,
			EmailSent:   entry.EmailSent,
			MessageSent: entry.MessageSent,
			CreatedBy:   entry.CreatedBy,
			CreatedAt:   entry.CreatedAt,
		}).Error
	})
}

// Ensure GormDispatchBatchRepository implements the domain interfaces
var (
	_ sourcing.DispatchBatchRepository = (*GormDispatchBatchRepository)(nil)
	_ sourcing.BatchWriter             = (*GormDispatchBatchRepository)(nil)
)
