package sourcing

import "github.com/erp/sourcing/internal/domain/shared"

// Dispatch outcome errors. They are reported to the caller as an unsuccessful
// result rather than as transport errors.
var (
	ErrNoEligibleItems     = shared.NewDomainError("NO_ELIGIBLE_ITEMS", "No inquiries")
	ErrTransactionConflict = shared.NewDomainError("TRANSACTION_CONFLICT",
		"These inquiries were just dispatched by someone else. Please refresh and try again.")
	ErrRequestInProgress = shared.NewDomainError("REQUEST_IN_PROGRESS", "Request already in progress")
)
