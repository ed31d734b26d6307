package sourcing

import (
	"strings"

	"github.com/erp/sourcing/internal/domain/shared"
)

// Direction identifies which counterparty a dispatch batch goes to
type Direction string

const (
	DirectionToSupplier Direction = "TO_SUPPLIER"
	DirectionToCustomer Direction = "TO_CUSTOMER"
)

// IsValid checks if the direction is one of the known values
func (d Direction) IsValid() bool {
	switch d {
	case DirectionToSupplier, DirectionToCustomer:
		return true
	default:
		return false
	}
}

// FilePrefix returns the prefix used in artifact filenames
func (d Direction) FilePrefix() string {
	if d == DirectionToCustomer {
		return "ToCustomer"
	}
	return "ToSupplier"
}

// Label returns the human readable direction used in subjects and letters
func (d Direction) Label() string {
	if d == DirectionToCustomer {
		return "to Customer"
	}
	return "to Supplier"
}

// CounterpartyKind returns the kind of counterparty the direction addresses
func (d Direction) CounterpartyKind() CounterpartyKind {
	if d == DirectionToCustomer {
		return CounterpartyCustomer
	}
	return CounterpartySupplier
}

// ParseDirection accepts "TO_SUPPLIER", "to-supplier", "supplier" and the
// customer equivalents, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	switch normalized {
	case "tosupplier", "supplier":
		return DirectionToSupplier, nil
	case "tocustomer", "customer":
		return DirectionToCustomer, nil
	default:
		return "", shared.NewDomainError("INVALID_DIRECTION", "Unknown dispatch direction: "+s)
	}
}
