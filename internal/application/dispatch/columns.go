package dispatch

import (
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/spreadsheet"
	"github.com/shopspring/decimal"
)

// supplierColumns is the layout of a sheet sent to a supplier.
// Price, lead time and remarks are left for the supplier to fill in.
var supplierColumns = []spreadsheet.Column{
	{Key: "line", Header: "No.", Width: 6, Role: spreadsheet.RolePrimary, Kind: spreadsheet.KindNumber},
	{Key: "inquiry", Header: "Inquiry No.", Width: 16, Role: spreadsheet.RolePrimary},
	{Key: "image", Header: "Image", Width: 18, Role: spreadsheet.RoleAuxiliary, Kind: spreadsheet.KindImage},
	{Key: "product", Header: "Product", Width: 28, Role: spreadsheet.RolePrimary},
	{Key: "description", Header: "Description", Width: 36, Role: spreadsheet.RoleAuxiliary},
	{Key: "size", Header: "Size", Width: 14, Role: spreadsheet.RoleAuxiliary},
	{Key: "quantity", Header: "Qty", Width: 10, Role: spreadsheet.RolePrimary, Kind: spreadsheet.KindNumber},
	{Key: "unit", Header: "Unit", Width: 8, Role: spreadsheet.RolePrimary},
	{Key: "site", Header: "Site", Width: 14, Role: spreadsheet.RoleAuxiliary},
	{Key: "pr", Header: "PR No.", Width: 14, Role: spreadsheet.RoleAuxiliary},
	{Key: "unit_price", Header: "Unit Price", Width: 14, Role: spreadsheet.RoleSupplierInput, Kind: spreadsheet.KindMoney},
	{Key: "lead_time", Header: "Lead Time", Width: 14, Role: spreadsheet.RoleSupplierInput},
	{Key: "supplier_remarks", Header: "Supplier Remarks", Width: 30, Role: spreadsheet.RoleSupplierInput},
}

// customerColumns is the layout of a sheet sent to a customer
var customerColumns = []spreadsheet.Column{
	{Key: "line", Header: "No.", Width: 6, Role: spreadsheet.RolePrimary, Kind: spreadsheet.KindNumber},
	{Key: "inquiry", Header: "Inquiry No.", Width: 16, Role: spreadsheet.RolePrimary},
	{Key: "image", Header: "Image", Width: 18, Role: spreadsheet.RoleAuxiliary, Kind: spreadsheet.KindImage},
	{Key: "product", Header: "Product", Width: 28, Role: spreadsheet.RolePrimary},
	{Key: "description", Header: "Description", Width: 36, Role: spreadsheet.RoleAuxiliary},
	{Key: "size", Header: "Size", Width: 14, Role: spreadsheet.RoleAuxiliary},
	{Key: "quantity", Header: "Qty", Width: 10, Role: spreadsheet.RolePrimary, Kind: spreadsheet.KindNumber},
	{Key: "unit", Header: "Unit", Width: 8, Role: spreadsheet.RolePrimary},
	{Key: "unit_price", Header: "Unit Price", Width: 14, Role: spreadsheet.RolePrimary, Kind: spreadsheet.KindMoney},
	{Key: "total", Header: "Total", Width: 16, Role: spreadsheet.RolePrimary, Kind: spreadsheet.KindMoney},
	{Key: "site", Header: "Site", Width: 14, Role: spreadsheet.RoleAuxiliary},
	{Key: "pr", Header: "PR No.", Width: 14, Role: spreadsheet.RoleAuxiliary},
	{Key: "remarks", Header: "Remarks", Width: 30, Role: spreadsheet.RoleAuxiliary},
}

// ColumnsFor returns the sheet layout for direction
func ColumnsFor(direction sourcing.Direction) []spreadsheet.Column {
	if direction == sourcing.DirectionToCustomer {
		return customerColumns
	}
	return supplierColumns
}

// SupplierRow is one line of a sheet sent to a supplier
type SupplierRow struct {
	LineNo        int
	InquiryNumber string
	Image         *spreadsheet.Image
	ProductName   string
	Description   string
	Size          string
	Quantity      decimal.Decimal
	Unit          string
	Site          string
	PRNumber      string
}

// Values returns the row in supplierColumns order
func (r SupplierRow) Values() []any {
	return []any{
		r.LineNo,
		r.InquiryNumber,
		r.Image,
		r.ProductName,
		r.Description,
		r.Size,
		r.Quantity,
		r.Unit,
		r.Site,
		r.PRNumber,
		nil,
		nil,
		nil,
	}
}

// CustomerRow is one priced line of a sheet sent to a customer
type CustomerRow struct {
	LineNo        int
	InquiryNumber string
	Image         *spreadsheet.Image
	ProductName   string
	Description   string
	Size          string
	Quantity      decimal.Decimal
	Unit          string
	UnitPrice     decimal.Decimal
	Total         decimal.Decimal
	Site          string
	PRNumber      string
	Remarks       string
}

// Values returns the row in customerColumns order
func (r CustomerRow) Values() []any {
	return []any{
		r.LineNo,
		r.InquiryNumber,
		r.Image,
		r.ProductName,
		r.Description,
		r.Size,
		r.Quantity,
		r.Unit,
		r.UnitPrice,
		r.Total,
		r.Site,
		r.PRNumber,
		r.Remarks,
	}
}

func newSupplierRow(lineNo int, inq *sourcing.Inquiry, image *spreadsheet.Image) SupplierRow {
	return SupplierRow{
		LineNo:        lineNo,
		InquiryNumber: inq.InquiryNumber,
		Image:         image,
		ProductName:   inq.ProductName,
		Description:   inq.Description,
		Size:          inq.Size,
		Quantity:      inq.Quantity,
		Unit:          inq.Unit,
		Site:          inq.Site,
		PRNumber:      inq.PRNumber,
	}
}

func newCustomerRow(lineNo int, inq *sourcing.Inquiry, image *spreadsheet.Image) CustomerRow {
	row := CustomerRow{
		LineNo:        lineNo,
		InquiryNumber: inq.InquiryNumber,
		Image:         image,
		ProductName:   inq.ProductName,
		Description:   inq.Description,
		Size:          inq.Size,
		Quantity:      inq.Quantity,
		Unit:          inq.Unit,
		Total:         inq.LineTotal(),
		Site:          inq.Site,
		PRNumber:      inq.PRNumber,
		Remarks:       inq.Remarks,
	}
	if inq.CustomerPrice != nil {
		row.UnitPrice = inq.CustomerPrice.Round(sourcing.MoneyPlaces)
	}
	return row
}
