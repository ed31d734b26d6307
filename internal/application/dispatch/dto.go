package dispatch

import (
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request DTOs
// =============================================================================

// CreateDispatchRequest asks for a new batch, or only its documents when Preview is set
type CreateDispatchRequest struct {
	Preview               bool        `json:"preview"`
	CounterpartyID        uuid.UUID   `json:"counterpartyId" binding:"required"`
	InquiryIDs            []uuid.UUID `json:"inquiryIds" binding:"required,min=1"`
	Email                 bool        `json:"email"`
	Message               bool        `json:"message"`
	ExternalEmails        []string    `json:"externalEmails"`
	ExternalNumbers       []string    `json:"externalNumbers"`
	Remarks               string      `json:"remarks" binding:"max=2000"`
	TimezoneOffsetMinutes int         `json:"timezoneOffsetMinutes" binding:"min=-840,max=840"`
	IdempotencyKey        string      `json:"idempotencyKey" binding:"max=128"`
}

// ResendDispatchRequest asks for an existing batch to be delivered again
type ResendDispatchRequest struct {
	Email                 bool     `json:"email"`
	Message               bool     `json:"message"`
	ExternalEmails        []string `json:"externalEmails"`
	ExternalNumbers       []string `json:"externalNumbers"`
	TimezoneOffsetMinutes int      `json:"timezoneOffsetMinutes" binding:"min=-840,max=840"`
	IdempotencyKey        string   `json:"idempotencyKey" binding:"max=128"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// DispatchResult is the outcome of a create or resend.
// BatchID and the delivery flags are omitted for previews.
type DispatchResult struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message,omitempty"`
	SpreadsheetURL string     `json:"spreadsheetUrl,omitempty"`
	PDFURL         string     `json:"pdfUrl,omitempty"`
	BatchID        *uuid.UUID `json:"batchId,omitempty"`
	EmailSent      *bool      `json:"emailSent,omitempty"`
	MessageSent    *bool      `json:"messageSent,omitempty"`
}

func failedResult(message string) *DispatchResult {
	return &DispatchResult{Success: false, Message: message}
}

func deliveredResult(batchID uuid.UUID, urls *PublishedArtifacts, outcome DeliveryOutcome) *DispatchResult {
	emailSent, messageSent := outcome.EmailSent, outcome.MessageSent
	return &DispatchResult{
		Success:        true,
		SpreadsheetURL: urls.SpreadsheetURL,
		PDFURL:         urls.PDFURL,
		BatchID:        &batchID,
		EmailSent:      &emailSent,
		MessageSent:    &messageSent,
	}
}

// EligibleInquiryResponse is one inquiry the operator can dispatch
type EligibleInquiryResponse struct {
	ID            uuid.UUID        `json:"id"`
	InquiryNumber string           `json:"inquiryNumber"`
	ProductName   string           `json:"productName"`
	Description   string           `json:"description,omitempty"`
	Size          string           `json:"size,omitempty"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Unit          string           `json:"unit"`
	Site          string           `json:"site,omitempty"`
	PRNumber      string           `json:"prNumber,omitempty"`
	SupplierPrice *decimal.Decimal `json:"supplierPrice,omitempty"`
	CustomerPrice *decimal.Decimal `json:"customerPrice,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// WorklistItemResponse is a counterparty with inquiries waiting to be sent
type WorklistItemResponse struct {
	CounterpartyID uuid.UUID `json:"counterpartyId"`
	Name           string    `json:"name"`
	Count          int64     `json:"count"`
}

// BatchResponse describes a dispatched batch with its artifacts and resend history
type BatchResponse struct {
	ID               uuid.UUID             `json:"id"`
	Direction        sourcing.Direction    `json:"direction"`
	CounterpartyID   uuid.UUID             `json:"counterpartyId"`
	CounterpartyName string                `json:"counterpartyName"`
	Site             string                `json:"site,omitempty"`
	PRNumber         string                `json:"prNumber,omitempty"`
	EmailSent        bool                  `json:"emailSent"`
	MessageSent      bool                  `json:"messageSent"`
	LastResendAt     *time.Time            `json:"lastResendAt,omitempty"`
	Remarks          string                `json:"remarks,omitempty"`
	CreatedBy        uuid.UUID             `json:"createdBy"`
	CreatedAt        time.Time             `json:"createdAt"`
	InquiryIDs       []uuid.UUID           `json:"inquiryIds"`
	Attachments      []AttachmentResponse  `json:"attachments"`
	ResendHistory    []ResendEntryResponse `json:"resendHistory"`
}

// AttachmentResponse is one stored artifact
type AttachmentResponse struct {
	ID          uuid.UUID               `json:"id"`
	Kind        sourcing.AttachmentKind `json:"kind"`
	Filename    string                  `json:"filename"`
	URL         string                  `json:"url"`
	ContentType string                  `json:"contentType"`
	Size        int64                   `json:"size"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// ResendEntryResponse is one resend of a batch
type ResendEntryResponse struct {
	ID          uuid.UUID `json:"id"`
	EmailSent   bool      `json:"emailSent"`
	MessageSent bool      `json:"messageSent"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toEligibleInquiryResponse(inq *sourcing.Inquiry) EligibleInquiryResponse {
	resp := EligibleInquiryResponse{
		ID:            inq.ID,
		InquiryNumber: inq.InquiryNumber,
		ProductName:   inq.ProductName,
		Description:   inq.Description,
		Size:          inq.Size,
		Quantity:      inq.Quantity,
		Unit:          inq.Unit,
		Site:          inq.Site,
		PRNumber:      inq.PRNumber,
		SupplierPrice: inq.SupplierPrice,
		CustomerPrice: inq.CustomerPrice,
		CreatedAt:     inq.CreatedAt,
	}
	if inq.CustomerPrice != nil {
		total := inq.LineTotal()
		resp.Total = &total
	}
	return resp
}

func toBatchResponse(
	batch *sourcing.DispatchBatch,
	counterpartyName string,
	attachments []sourcing.Attachment,
	history []sourcing.ResendHistoryEntry,
) *BatchResponse {
	resp := &BatchResponse{
		ID:               batch.ID,
		Direction:        batch.Direction,
		CounterpartyID:   batch.CounterpartyID,
		CounterpartyName: counterpartyName,
		Site:             batch.Site,
		PRNumber:         batch.PRNumber,
		EmailSent:        batch.EmailSent,
		MessageSent:      batch.MessageSent,
		LastResendAt:     batch.LastResendAt,
		Remarks:          batch.Remarks,
		CreatedBy:        batch.CreatedBy,
		CreatedAt:        batch.CreatedAt,
		InquiryIDs:       batch.InquiryIDs(),
		Attachments:      make([]AttachmentResponse, len(attachments)),
		ResendHistory:    make([]ResendEntryResponse, len(history)),
	}
	for i, a := range attachments {
		resp.Attachments[i] = AttachmentResponse{
			ID:          a.ID,
			Kind:        a.Kind,
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
			CreatedAt:   a.CreatedAt,
		}
	}
	for i, h := range history {
		resp.ResendHistory[i] = ResendEntryResponse{
			ID:          h.ID,
			EmailSent:   h.EmailSent,
			MessageSent: h.MessageSent,
			CreatedBy:   h.CreatedBy,
			CreatedAt:   h.CreatedAt,
		}
	}
	return resp
}
