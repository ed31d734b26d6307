package sourcing

import "github.com/google/uuid"

// CounterpartyKind distinguishes suppliers from customers
type CounterpartyKind string

const (
	CounterpartySupplier CounterpartyKind = "supplier"
	CounterpartyCustomer CounterpartyKind = "customer"
)

// Counterparty is a read-only view of a supplier or customer
type Counterparty struct {
	ID   uuid.UUID
	Kind CounterpartyKind
	Name string
}

// StaffMember is an internal user who can be reached by email or message
type StaffMember struct {
	ID     uuid.UUID
	Name   string
	Email  string
	Mobile string
}

// CounterpartyCount is one worklist row: a counterparty with eligible inquiries
type CounterpartyCount struct {
	CounterpartyID uuid.UUID
	Name           string
	Count          int64
}
