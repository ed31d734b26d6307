package sourcing

import (
	"strings"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/google/uuid"
)

// AttachmentKind identifies which artifact an attachment holds
type AttachmentKind string

const (
	AttachmentSpreadsheet AttachmentKind = "SPREADSHEET"
	AttachmentLetter      AttachmentKind = "LETTER"
)

// IsValid checks if the attachment kind is valid
func (k AttachmentKind) IsValid() bool {
	return k == AttachmentSpreadsheet || k == AttachmentLetter
}

// Attachment is a generated artifact stored in object storage.
// Preview artifacts have no batch.
type Attachment struct {
	ID          uuid.UUID
	BatchID     *uuid.UUID
	Kind        AttachmentKind
	Filename    string
	StorageKey  string
	URL         string
	ContentType string
	Size        int64
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
}

// NewAttachment validates and creates an attachment record
func NewAttachment(
	batchID *uuid.UUID,
	kind AttachmentKind,
	filename, storageKey, url, contentType string,
	size int64,
	createdBy uuid.UUID,
	now time.Time,
) (*Attachment, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ATTACHMENT_KIND", "Invalid attachment kind: "+string(kind))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if strings.TrimSpace(storageKey) == "" {
		return nil, shared.NewDomainError("INVALID_STORAGE_KEY", "Storage key cannot be empty")
	}
	return &Attachment{
		ID:          uuid.New(),
		BatchID:     batchID,
		Kind:        kind,
		Filename:    filename,
		StorageKey:  storageKey,
		URL:         url,
		ContentType: contentType,
		Size:        size,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}, nil
}

// IsPreview reports whether the attachment was produced without a batch
func (a *Attachment) IsPreview() bool {
	return a.BatchID == nil
}
