package models

import (
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InquiryModel maps the inquiries table. Rows are owned by the CRUD layer;
// dispatch only reads them and updates the dispatch timestamps and status.
type InquiryModel struct {
	BaseModel
	InquiryNumber    string     `gorm:"type:varchar(50);not null;index"`
	StatusID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	ResultID         *uuid.UUID `gorm:"type:uuid"`
	SupplierID       *uuid.UUID `gorm:"type:uuid;index"`
	CustomerID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	RepresentativeID *uuid.UUID `gorm:"type:uuid"`
	Site             string     `gorm:"type:varchar(100)"`
	PRNumber         string     `gorm:"column:pr_number;type:varchar(100)"`

	ProductName string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:text"`
	Size        string          `gorm:"type:varchar(100)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Unit        string          `gorm:"type:varchar(20)"`
	ImageKey    string          `gorm:"type:varchar(500)"`

	ToSupplierDate      *time.Time
	SupplierOfferDate   *time.Time
	ToCustomerOfferDate *time.Time
	OfferSubmissionDate *time.Time

	SupplierPrice decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	CustomerPrice decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Margin        decimal.NullDecimal `gorm:"type:decimal(18,4)"`

	Remarks   string `gorm:"type:text"`
	DeletedAt *time.Time
}

// TableName returns the table name for GORM
func (InquiryModel) TableName() string {
	return "inquiries"
}

// ToDomain converts the model to a domain Inquiry, resolving the status row
// through statuses. Unknown status rows resolve to an empty status.
func (m *InquiryModel) ToDomain(statuses *sourcing.StatusCatalog) sourcing.Inquiry {
	status, _ := statuses.Resolve(m.StatusID)
	return sourcing.Inquiry{
		BaseEntity:          m.BaseModel.ToDomain(),
		InquiryNumber:       m.InquiryNumber,
		Status:              status,
		ResultID:            m.ResultID,
		SupplierID:          m.SupplierID,
		CustomerID:          m.CustomerID,
		RepresentativeID:    m.RepresentativeID,
		Site:                m.Site,
		PRNumber:            m.PRNumber,
		ProductName:         m.ProductName,
		Description:         m.Description,
		Size:                m.Size,
		Quantity:            m.Quantity,
		Unit:                m.Unit,
		ImageKey:            m.ImageKey,
		ToSupplierDate:      m.ToSupplierDate,
		SupplierOfferDate:   m.SupplierOfferDate,
		ToCustomerOfferDate: m.ToCustomerOfferDate,
		OfferSubmissionDate: m.OfferSubmissionDate,
		SupplierPrice:       nullDecimalPtr(m.SupplierPrice),
		CustomerPrice:       nullDecimalPtr(m.CustomerPrice),
		Margin:              nullDecimalPtr(m.Margin),
		Remarks:             m.Remarks,
		DeletedAt:           m.DeletedAt,
	}
}

// InquiryModelFromDomain creates a persistence model from a domain Inquiry
func InquiryModelFromDomain(i *sourcing.Inquiry, statuses *sourcing.StatusCatalog) *InquiryModel {
	m := &InquiryModel{
		InquiryNumber:       i.InquiryNumber,
		StatusID:            statuses.ID(i.Status),
		ResultID:            i.ResultID,
		SupplierID:          i.SupplierID,
		CustomerID:          i.CustomerID,
		RepresentativeID:    i.RepresentativeID,
		Site:                i.Site,
		PRNumber:            i.PRNumber,
		ProductName:         i.ProductName,
		Description:         i.Description,
		Size:                i.Size,
		Quantity:            i.Quantity,
		Unit:                i.Unit,
		ImageKey:            i.ImageKey,
		ToSupplierDate:      i.ToSupplierDate,
		SupplierOfferDate:   i.SupplierOfferDate,
		ToCustomerOfferDate: i.ToCustomerOfferDate,
		OfferSubmissionDate: i.OfferSubmissionDate,
		SupplierPrice:       decimalPtrToNull(i.SupplierPrice),
		CustomerPrice:       decimalPtrToNull(i.CustomerPrice),
		Margin:              decimalPtrToNull(i.Margin),
		Remarks:             i.Remarks,
		DeletedAt:           i.DeletedAt,
	}
	m.FromDomainBaseEntity(i.BaseEntity)
	return m
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func decimalPtrToNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
