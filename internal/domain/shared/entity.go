package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides the identity and audit timestamps shared by records
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch moves UpdatedAt forward to at
func (e *BaseEntity) Touch(at time.Time) {
	if at.After(e.UpdatedAt) {
		e.UpdatedAt = at
	}
}

// NewBaseEntity creates a new base entity with generated ID stamped at now
func NewBaseEntity(now time.Time) BaseEntity {
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
