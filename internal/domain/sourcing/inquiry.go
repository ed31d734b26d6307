package sourcing

import (
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Inquiry is a single sourcing request line: one product a customer asked for,
// priced by a supplier and offered back to the customer.
// It is created and edited by the CRUD layer; dispatch only moves it forward
// through MarkSentToSupplier and MarkSubmittedToCustomer.
type Inquiry struct {
	shared.BaseEntity
	InquiryNumber    string
	Status           InquiryStatus
	ResultID         *uuid.UUID
	SupplierID       *uuid.UUID
	CustomerID       uuid.UUID
	RepresentativeID *uuid.UUID
	Site             string
	PRNumber         string

	ProductName string
	Description string
	Size        string
	Quantity    decimal.Decimal
	Unit        string
	ImageKey    string

	ToSupplierDate      *time.Time
	SupplierOfferDate   *time.Time
	ToCustomerOfferDate *time.Time
	OfferSubmissionDate *time.Time

	SupplierPrice *decimal.Decimal
	CustomerPrice *decimal.Decimal
	Margin        *decimal.Decimal

	Remarks   string
	DeletedAt *time.Time
}

// IsActive reports whether the inquiry is open, has no result and is not deleted
func (i *Inquiry) IsActive() bool {
	return i.Status == StatusOpen && i.ResultID == nil && i.DeletedAt == nil
}

// IsResendable reports whether a line may be included when a batch is resent
func (i *Inquiry) IsResendable() bool {
	return i.IsActive()
}

// HasCustomerPricing reports whether every field needed to quote the customer is set
func (i *Inquiry) HasCustomerPricing() bool {
	return i.ToSupplierDate != nil &&
		i.SupplierOfferDate != nil &&
		i.SupplierPrice != nil &&
		i.CustomerPrice != nil &&
		i.Margin != nil
}

// EligibleFor mirrors the store's eligibility predicate for one inquiry.
// linked is whether the inquiry already belongs to a batch in that direction.
func (i *Inquiry) EligibleFor(direction Direction, counterpartyID uuid.UUID, linked bool) bool {
	if !i.IsActive() || linked {
		return false
	}
	switch direction {
	case DirectionToSupplier:
		return i.ToSupplierDate == nil && i.SupplierID != nil && *i.SupplierID == counterpartyID
	case DirectionToCustomer:
		return i.CustomerID == counterpartyID && i.HasCustomerPricing() && i.OfferSubmissionDate == nil
	default:
		return false
	}
}

// CounterpartyFor returns the counterparty the inquiry is addressed to in direction
func (i *Inquiry) CounterpartyFor(direction Direction) (uuid.UUID, bool) {
	if direction == DirectionToCustomer {
		return i.CustomerID, i.CustomerID != uuid.Nil
	}
	if i.SupplierID == nil {
		return uuid.Nil, false
	}
	return *i.SupplierID, true
}

// MarkSentToSupplier stamps the to-supplier date
func (i *Inquiry) MarkSentToSupplier(at time.Time) error {
	if !i.IsActive() {
		return shared.NewDomainError("INQUIRY_NOT_OPEN", "Inquiry is not open")
	}
	if i.ToSupplierDate != nil {
		return shared.NewDomainError("ALREADY_SENT_TO_SUPPLIER", "Inquiry was already sent to the supplier")
	}
	i.ToSupplierDate = &at
	i.Touch(at)
	return nil
}

// MarkSubmittedToCustomer records the customer offer and advances the status to Submitted
func (i *Inquiry) MarkSubmittedToCustomer(at time.Time) error {
	if !i.IsActive() {
		return shared.NewDomainError("INQUIRY_NOT_OPEN", "Inquiry is not open")
	}
	if i.OfferSubmissionDate != nil {
		return shared.NewDomainError("ALREADY_SUBMITTED", "Offer was already submitted to the customer")
	}
	if !i.HasCustomerPricing() {
		return shared.NewDomainError("PRICING_INCOMPLETE", "Supplier offer and customer pricing are required")
	}
	if !i.Status.CanTransitionTo(StatusSubmitted) {
		return shared.ErrInvalidState
	}
	i.OfferSubmissionDate = &at
	i.ToCustomerOfferDate = &at
	i.Status = StatusSubmitted
	i.Touch(at)
	return nil
}

// LineTotal returns the customer price times quantity, rounded to cents.
// Inquiries without a customer price total zero.
func (i *Inquiry) LineTotal() decimal.Decimal {
	if i.CustomerPrice == nil {
		return decimal.Zero
	}
	return LineTotal(*i.CustomerPrice, i.Quantity)
}
