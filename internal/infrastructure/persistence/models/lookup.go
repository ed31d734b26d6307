package models

import (
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
)

// InquiryStatusModel maps the inquiry status lookup table
type InquiryStatusModel struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string    `gorm:"type:varchar(50);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (InquiryStatusModel) TableName() string {
	return "inquiry_statuses"
}

// ToDomain converts the model to a status row
func (m *InquiryStatusModel) ToDomain() sourcing.StatusRow {
	return sourcing.StatusRow{ID: m.ID, Name: m.Name}
}

// SupplierModel is the read-only projection of the suppliers table
type SupplierModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"type:varchar(200);not null"`
	DeletedAt *time.Time
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// CustomerModel is the read-only projection of the customers table
type CustomerModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"type:varchar(200);not null"`
	DeletedAt *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// StaffModel is the read-only projection of internal users
type StaffModel struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key"`
	Name   string    `gorm:"type:varchar(200);not null"`
	Email  string    `gorm:"type:varchar(200)"`
	Mobile string    `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (StaffModel) TableName() string {
	return "users"
}

// ToDomain converts the model to a StaffMember
func (m *StaffModel) ToDomain() sourcing.StaffMember {
	return sourcing.StaffMember{ID: m.ID, Name: m.Name, Email: m.Email, Mobile: m.Mobile}
}
