package sourcing

import (
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/google/uuid"
)

// DispatchBatch is one send of a set of inquiries to a single counterparty.
// Its line set is fixed when the batch is created; resends only append history.
type DispatchBatch struct {
	shared.BaseEntity
	Direction      Direction
	CounterpartyID uuid.UUID
	Site           string
	PRNumber       string
	EmailSent      bool // original send only
	MessageSent    bool // original send only
	LastResendAt   *time.Time
	Remarks        string
	CreatedBy      uuid.UUID
	UpdatedBy      uuid.UUID
	Lines          []BatchLine
}

// BatchLine links an inquiry to the batch that dispatched it in one direction
type BatchLine struct {
	BatchID   uuid.UUID
	InquiryID uuid.UUID
	Direction Direction
	LineNo    int
}

// NewDispatchBatch creates a batch whose lines follow the order of inquiries.
// Site and PR number are carried only when every inquiry shares the same value.
func NewDispatchBatch(
	direction Direction,
	counterpartyID uuid.UUID,
	inquiries []Inquiry,
	remarks string,
	createdBy uuid.UUID,
	now time.Time,
) (*DispatchBatch, error) {
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Unknown dispatch direction")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty ID cannot be empty")
	}
	if len(inquiries) == 0 {
		return nil, ErrNoEligibleItems
	}

	batch := &DispatchBatch{
		BaseEntity:     shared.NewBaseEntity(now),
		Direction:      direction,
		CounterpartyID: counterpartyID,
		Remarks:        remarks,
		CreatedBy:      createdBy,
		UpdatedBy:      createdBy,
	}
	batch.Site, batch.PRNumber = CommonGrouping(inquiries)

	seen := make(map[uuid.UUID]struct{}, len(inquiries))
	batch.Lines = make([]BatchLine, 0, len(inquiries))
	for _, inq := range inquiries {
		if _, dup := seen[inq.ID]; dup {
			return nil, shared.NewDomainError("DUPLICATE_INQUIRY", "Inquiry appears twice in the batch")
		}
		seen[inq.ID] = struct{}{}
		batch.Lines = append(batch.Lines, BatchLine{
			BatchID:   batch.ID,
			InquiryID: inq.ID,
			Direction: direction,
			LineNo:    len(batch.Lines) + 1,
		})
	}
	return batch, nil
}

// InquiryIDs returns the linked inquiry IDs in line order
func (b *DispatchBatch) InquiryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.Lines))
	for i, line := range b.Lines {
		ids[i] = line.InquiryID
	}
	return ids
}

// RecordDelivery stores the outcome of the original send
func (b *DispatchBatch) RecordDelivery(emailSent, messageSent bool, at time.Time) {
	b.EmailSent = emailSent
	b.MessageSent = messageSent
	b.Touch(at)
}

// RecordResend stamps the latest resend time
func (b *DispatchBatch) RecordResend(actor uuid.UUID, at time.Time) {
	b.LastResendAt = &at
	b.UpdatedBy = actor
	b.Touch(at)
}

// CommonGrouping returns the site and PR number shared by all inquiries,
// or empty strings where they differ.
func CommonGrouping(inquiries []Inquiry) (site, prNumber string) {
	if len(inquiries) == 0 {
		return "", ""
	}
	site, prNumber = inquiries[0].Site, inquiries[0].PRNumber
	for _, inq := range inquiries[1:] {
		if inq.Site != site {
			site = ""
		}
		if inq.PRNumber != prNumber {
			prNumber = ""
		}
	}
	return site, prNumber
}

// ResendHistoryEntry is one append-only record of a resend
type ResendHistoryEntry struct {
	ID          uuid.UUID
	BatchID     uuid.UUID
	EmailSent   bool
	MessageSent bool
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
}

// NewResendHistoryEntry records the channel outcome of a resend
func NewResendHistoryEntry(batchID uuid.UUID, emailSent, messageSent bool, createdBy uuid.UUID, now time.Time) *ResendHistoryEntry {
	return &ResendHistoryEntry{
		ID:          uuid.New(),
		BatchID:     batchID,
		EmailSent:   emailSent,
		MessageSent: messageSent,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}
}
