package sourcing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EligibilityQuery narrows the eligibility predicate to one counterparty and,
// optionally, to a caller-chosen subset of inquiry IDs.
type EligibilityQuery struct {
	Direction      Direction
	CounterpartyID uuid.UUID
	InquiryIDs     []uuid.UUID // empty means every eligible inquiry
}

// InquiryRepository reads inquiries for dispatch
type InquiryRepository interface {
	// FindEligible returns inquiries satisfying the direction predicate,
	// ordered by creation time then ID.
	FindEligible(ctx context.Context, query EligibilityQuery) ([]Inquiry, error)

	// CountEligibleByCounterparty groups eligible inquiries by counterparty.
	// Names are left empty; callers resolve them separately.
	CountEligibleByCounterparty(ctx context.Context, direction Direction) ([]CounterpartyCount, error)

	// FindByIDs loads inquiries regardless of state, including soft-deleted ones
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Inquiry, error)
}

// InquiryWriter applies dispatch transitions to inquiries
type InquiryWriter interface {
	// MarkDispatched stamps every inquiry in ids that still satisfies the
	// eligibility predicate and returns the number of rows changed.
	MarkDispatched(ctx context.Context, query EligibilityQuery, at time.Time) (int64, error)
}

// DispatchBatchRepository reads batches and records delivery outcomes
type DispatchBatchRepository interface {
	// FindByID loads a batch with its lines; returns shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*DispatchBatch, error)

	// UpdateDeliveryFlags stores the outcome of the original send
	UpdateDeliveryFlags(ctx context.Context, id uuid.UUID, emailSent, messageSent bool) error

	// FindResendHistory lists resend entries oldest first
	FindResendHistory(ctx context.Context, batchID uuid.UUID) ([]ResendHistoryEntry, error)

	// AppendResend inserts entry and sets the batch's last resend time in one transaction
	AppendResend(ctx context.Context, entry *ResendHistoryEntry) error
}

// BatchWriter inserts a batch together with its lines
type BatchWriter interface {
	Create(ctx context.Context, batch *DispatchBatch) error
}

// AttachmentRepository stores artifact records
type AttachmentRepository interface {
	Save(ctx context.Context, attachment *Attachment) error
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]Attachment, error)
	// FindUnreferencedOlderThan returns preview attachments created before cutoff
	FindUnreferencedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CounterpartyRepository looks up suppliers and customers
type CounterpartyRepository interface {
	// FindCounterparty returns shared.ErrNotFound if no counterparty of the direction's kind exists
	FindCounterparty(ctx context.Context, direction Direction, id uuid.UUID) (*Counterparty, error)
	FindNames(ctx context.Context, direction Direction, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// StaffRepository looks up internal users
type StaffRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]StaffMember, error)
}

// StatusRepository reads the inquiry status lookup table
type StatusRepository interface {
	FindAll(ctx context.Context) ([]StatusRow, error)
}
