package sourcing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InquiryStatus is the closed set of lifecycle states an inquiry can be in.
// The store keeps statuses as lookup rows; a StatusCatalog maps between them.
type InquiryStatus string

const (
	StatusOpen      InquiryStatus = "OPEN"
	StatusSubmitted InquiryStatus = "SUBMITTED"
	StatusCancelled InquiryStatus = "CANCELLED"
	StatusClosed    InquiryStatus = "CLOSED"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []InquiryStatus{StatusOpen, StatusSubmitted, StatusCancelled, StatusClosed}

// IsValid checks if the status is a known value
func (s InquiryStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusSubmitted, StatusCancelled, StatusClosed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status may move to target.
// Statuses only advance; Cancelled and Closed are terminal.
func (s InquiryStatus) CanTransitionTo(target InquiryStatus) bool {
	switch s {
	case StatusOpen:
		return target == StatusSubmitted || target == StatusCancelled || target == StatusClosed
	case StatusSubmitted:
		return target == StatusClosed
	default:
		return false
	}
}

// DefaultStatusNames are the display names matched against the status lookup table
func DefaultStatusNames() map[InquiryStatus]string {
	return map[InquiryStatus]string{
		StatusOpen:      "Open",
		StatusSubmitted: "Submitted",
		StatusCancelled: "Cancelled",
		StatusClosed:    "Closed",
	}
}

// StatusRow is one row of the inquiry status lookup table
type StatusRow struct {
	ID   uuid.UUID
	Name string
}

// StatusCatalog resolves inquiry statuses to lookup row IDs and back.
// It is built once at startup and read-only afterwards.
type StatusCatalog struct {
	ids      map[InquiryStatus]uuid.UUID
	statuses map[uuid.UUID]InquiryStatus
}

// NewStatusCatalog matches every status against rows by display name
// (case-insensitive). names overrides the default display names per status.
func NewStatusCatalog(rows []StatusRow, names map[InquiryStatus]string) (*StatusCatalog, error) {
	display := DefaultStatusNames()
	for status, name := range names {
		if strings.TrimSpace(name) != "" {
			display[status] = name
		}
	}

	byName := make(map[string]uuid.UUID, len(rows))
	for _, row := range rows {
		byName[strings.ToLower(strings.TrimSpace(row.Name))] = row.ID
	}

	catalog := &StatusCatalog{
		ids:      make(map[InquiryStatus]uuid.UUID, len(AllStatuses)),
		statuses: make(map[uuid.UUID]InquiryStatus, len(AllStatuses)),
	}
	for _, status := range AllStatuses {
		name := display[status]
		id, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("inquiry status %q (%s) not found in status table", name, status)
		}
		catalog.ids[status] = id
		catalog.statuses[id] = status
	}
	return catalog, nil
}

// MustStatusCatalog builds a catalog from a status→ID map. Intended for tests and fixtures.
func MustStatusCatalog(ids map[InquiryStatus]uuid.UUID) *StatusCatalog {
	rows := make([]StatusRow, 0, len(ids))
	for status, id := range ids {
		rows = append(rows, StatusRow{ID: id, Name: DefaultStatusNames()[status]})
	}
	catalog, err := NewStatusCatalog(rows, nil)
	if err != nil {
		panic(err)
	}
	return catalog
}

// ID returns the lookup row ID for status
func (c *StatusCatalog) ID(status InquiryStatus) uuid.UUID {
	return c.ids[status]
}

// Resolve returns the status for a lookup row ID
func (c *StatusCatalog) Resolve(id uuid.UUID) (InquiryStatus, bool) {
	status, ok := c.statuses[id]
	return status, ok
}
