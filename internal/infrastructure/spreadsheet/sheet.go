// Package spreadsheet turns tabular dispatch data into XLSX workbooks.
//
// A Sheet is a list of typed columns plus rows of values aligned to those
// columns. Each column carries a Role; the role alone decides the header
// fill, so recipients can tell at a glance which cells they are expected to
// complete.
package spreadsheet

import "fmt"

// Role tags a column with the part it plays for the recipient
type Role string

const (
	// RolePrimary marks the identifying columns of a line
	RolePrimary Role = "primary"
	// RoleSupplierInput marks columns the supplier fills in
	RoleSupplierInput Role = "supplier-input"
	// RoleAuxiliary marks reference columns
	RoleAuxiliary Role = "auxiliary"
)

// HeaderStyle is the fill and font of a header cell
type HeaderStyle struct {
	Fill      string
	FontColor string
	Bold      bool
}

// headerStyles is the role to header style lookup table.
// Recipients rely on these colours; do not change them.
var headerStyles = map[Role]HeaderStyle{
	RolePrimary:       {Fill: "#1F4E78", FontColor: "#FFFFFF", Bold: true},
	RoleSupplierInput: {Fill: "#FFE699", FontColor: "#000000"},
	RoleAuxiliary:     {Fill: "#D9D9D9", FontColor: "#000000"},
}

// HeaderStyleFor returns the header style for role.
// Unknown roles use the auxiliary style.
func HeaderStyleFor(role Role) HeaderStyle {
	if style, ok := headerStyles[role]; ok {
		return style
	}
	return headerStyles[RoleAuxiliary]
}

// Kind selects how a column's values are written and formatted
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindMoney
	KindDate
	KindImage
)

// Column describes one spreadsheet column
type Column struct {
	Key    string
	Header string
	Width  float64 // in characters; zero uses the default width
	Role   Role
	Kind   Kind
}

// Image is an inline picture placed in a KindImage cell
type Image struct {
	Data []byte
}

// Row holds one value per column, in column order.
// Nil values leave the cell empty.
type Row struct {
	Values []any
}

// Sheet is a single worksheet
type Sheet struct {
	Name    string
	Columns []Column
	Rows    []Row
	// Totals maps column keys to values written on a trailing totals row
	Totals     map[string]any
	TotalLabel string
}

// Validate checks that every row is aligned with the columns
func (s *Sheet) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("sheet %q has no columns", s.Name)
	}
	keys := make(map[string]struct{}, len(s.Columns))
	for _, col := range s.Columns {
		if _, dup := keys[col.Key]; dup {
			return fmt.Errorf("sheet %q has duplicate column key %q", s.Name, col.Key)
		}
		keys[col.Key] = struct{}{}
	}
	for i, row := range s.Rows {
		if len(row.Values) != len(s.Columns) {
			return fmt.Errorf("sheet %q row %d has %d values, want %d", s.Name, i+1, len(row.Values), len(s.Columns))
		}
	}
	for key := range s.Totals {
		if _, ok := keys[key]; !ok {
			return fmt.Errorf("sheet %q totals reference unknown column %q", s.Name, key)
		}
	}
	return nil
}
