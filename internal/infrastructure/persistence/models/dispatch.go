package models

import (
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
)

// DispatchBatchModel maps the dispatch_batches table
type DispatchBatchModel struct {
	BaseModel
	Direction      sourcing.Direction `gorm:"type:varchar(20);not null;index"`
	CounterpartyID uuid.UUID          `gorm:"type:uuid;not null;index"`
	Site           string             `gorm:"type:varchar(100)"`
	PRNumber       string             `gorm:"column:pr_number;type:varchar(100)"`
	EmailSent      bool               `gorm:"not null;default:false"`
	MessageSent    bool               `gorm:"not null;default:false"`
	LastResendAt   *time.Time
	Remarks        string    `gorm:"type:text"`
	CreatedBy      uuid.UUID `gorm:"type:uuid;not null"`
	UpdatedBy      uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (DispatchBatchModel) TableName() string {
	return "dispatch_batches"
}

// ToDomain converts the model and its lines to a domain DispatchBatch
func (m *DispatchBatchModel) ToDomain(lines []BatchLineLinkModel) *sourcing.DispatchBatch {
	batch := &sourcing.DispatchBatch{
		BaseEntity:     m.BaseModel.ToDomain(),
		Direction:      m.Direction,
		CounterpartyID: m.CounterpartyID,
		Site:           m.Site,
		PRNumber:       m.PRNumber,
		EmailSent:      m.EmailSent,
		MessageSent:    m.MessageSent,
		LastResendAt:   m.LastResendAt,
		Remarks:        m.Remarks,
		CreatedBy:      m.CreatedBy,
		UpdatedBy:      m.UpdatedBy,
		Lines:          make([]sourcing.BatchLine, len(lines)),
	}
	for i, l := range lines {
		batch.Lines[i] = l.ToDomain()
	}
	return batch
}

// DispatchBatchModelFromDomain creates a persistence model from a domain DispatchBatch
func DispatchBatchModelFromDomain(b *sourcing.DispatchBatch) *DispatchBatchModel {
	m := &DispatchBatchModel{
		Direction:      b.Direction,
		CounterpartyID: b.CounterpartyID,
		Site:           b.Site,
		PRNumber:       b.PRNumber,
		EmailSent:      b.EmailSent,
		MessageSent:    b.MessageSent,
		LastResendAt:   b.LastResendAt,
		Remarks:        b.Remarks,
		CreatedBy:      b.CreatedBy,
		UpdatedBy:      b.UpdatedBy,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// BatchLineLinkModel maps batch_line_links. The unique (inquiry_id, direction)
// index keeps an inquiry in at most one batch per direction.
type BatchLineLinkModel struct {
	BatchID   uuid.UUID          `gorm:"type:uuid;primaryKey"`
	InquiryID uuid.UUID          `gorm:"type:uuid;primaryKey;uniqueIndex:idx_batch_line_inquiry_direction"`
	Direction sourcing.Direction `gorm:"type:varchar(20);not null;uniqueIndex:idx_batch_line_inquiry_direction"`
	LineNo    int                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BatchLineLinkModel) TableName() string {
	return "batch_line_links"
}

// ToDomain converts the model to a BatchLine
func (m *BatchLineLinkModel) ToDomain() sourcing.BatchLine {
	return sourcing.BatchLine{
		BatchID:   m.BatchID,
		InquiryID: m.InquiryID,
		Direction: m.Direction,
		LineNo:    m.LineNo,
	}
}

// ResendHistoryModel maps the append-only resend history table
type ResendHistoryModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	BatchID     uuid.UUID `gorm:"type:uuid;not null;index"`
	EmailSent   bool      `gorm:"not null"`
	MessageSent bool      `gorm:"not null"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ResendHistoryModel) TableName() string {
	return "dispatch_resend_history"
}

// ToDomain converts the model to a ResendHistoryEntry
func (m *ResendHistoryModel) ToDomain() sourcing.ResendHistoryEntry {
	return sourcing.ResendHistoryEntry{
		ID:          m.ID,
		BatchID:     m.BatchID,
		EmailSent:   m.EmailSent,
		MessageSent: m.MessageSent,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
	}
}

// AttachmentModel maps dispatch_attachments
type AttachmentModel struct {
	ID          uuid.UUID               `gorm:"type:uuid;primary_key"`
	BatchID     *uuid.UUID              `gorm:"type:uuid;index"`
	Kind        sourcing.AttachmentKind `gorm:"type:varchar(20);not null"`
	Filename    string                  `gorm:"type:varchar(255);not null"`
	StorageKey  string                  `gorm:"type:varchar(500);not null"`
	URL         string                  `gorm:"type:text"`
	ContentType string                  `gorm:"type:varchar(100)"`
	Size        int64                   `gorm:"not null;default:0"`
	CreatedBy   uuid.UUID               `gorm:"type:uuid;not null"`
	CreatedAt   time.Time               `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AttachmentModel) TableName() string {
	return "dispatch_attachments"
}

// ToDomain converts the model to a domain Attachment
func (m *AttachmentModel) ToDomain() sourcing.Attachment {
	return sourcing.Attachment{
		ID:          m.ID,
		BatchID:     m.BatchID,
		Kind:        m.Kind,
		Filename:    m.Filename,
		StorageKey:  m.StorageKey,
		URL:         m.URL,
		ContentType: m.ContentType,
		Size:        m.Size,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
	}
}

// AttachmentModelFromDomain creates a persistence model from a domain Attachment
func AttachmentModelFromDomain(a *sourcing.Attachment) *AttachmentModel {
	return &AttachmentModel{
		ID:          a.ID,
		BatchID:     a.BatchID,
		Kind:        a.Kind,
		Filename:    a.Filename,
		StorageKey:  a.StorageKey,
		URL:         a.URL,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
	}
}

// All returns every model the dispatch schema owns or reads, for AutoMigrate in tests
func All() []any {
	return []any{
		&InquiryStatusModel{},
		&SupplierModel{},
		&CustomerModel{},
		&StaffModel{},
		&InquiryModel{},
		&DispatchBatchModel{},
		&BatchLineLinkModel{},
		&ResendHistoryModel{},
		&AttachmentModel{},
	}
}
