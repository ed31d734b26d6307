package printing

import (
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/shopspring/decimal"
)

// LetterData is the data bound to a dispatch letter template
type LetterData struct {
	Title            string
	DirectionLabel   string
	CompanyName      string
	CounterpartyName string
	Site             string
	PRNumber         string
	Date             time.Time // already shifted to the operator's timezone
	Contact          LetterContact
	Representatives  []LetterContact
	Rows             []LetterRow
	Total            decimal.Decimal
	Remarks          string
}

// LetterContact is a person the recipient can reply to
type LetterContact struct {
	Name   string
	Email  string
	Mobile string
}

// LetterRow is one inquiry line in the letter table.
// UnitPrice and Total are nil for lines sent to suppliers.
type LetterRow struct {
	LineNo        int
	InquiryNumber string
	ProductName   string
	Description   string
	Size          string
	Quantity      decimal.Decimal
	Unit          string
	UnitPrice     *decimal.Decimal
	Total         *decimal.Decimal
}

// LetterTemplate returns the built-in letter layout for direction
func LetterTemplate(direction sourcing.Direction) string {
	if direction == sourcing.DirectionToCustomer {
		return letterHead + customerLetterBody + letterFoot
	}
	return letterHead + supplierLetterBody + letterFoot
}

// LetterFooter is the page footer printed by the PDF converter
const LetterFooter = `<div style="width:100%;font-size:8px;color:#777;text-align:center;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

const letterHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Arial, Helvetica, sans-serif; font-size: 11px; color: #222; }
  h1 { font-size: 16px; margin: 0 0 4px 0; color: #1F4E78; }
  .meta td { padding: 1px 8px 1px 0; vertical-align: top; }
  .lines { width: 100%; border-collapse: collapse; margin-top: 12px; }
  .lines th { background: #1F4E78; color: #fff; font-weight: bold; padding: 4px; border: 1px solid #999; }
  .lines td { padding: 4px; border: 1px solid #bbb; vertical-align: top; }
  .num { text-align: right; white-space: nowrap; }
  .total td { font-weight: bold; background: #F2F2F2; }
  .remarks { margin-top: 12px; }
  .contact { margin-top: 16px; }
</style>
</head>
<body>
<h1>{{default "Inquiry" .CompanyName}} - Inquiry {{.DirectionLabel}}</h1>
<table class="meta">
  <tr><td>To:</td><td><strong>{{.CounterpartyName}}</strong></td></tr>
  <tr><td>Date:</td><td>{{formatDate .Date}}</td></tr>
  {{- if .Site}}
  <tr><td>Site:</td><td>{{.Site}}</td></tr>
  {{- end}}
  {{- if .PRNumber}}
  <tr><td>PR No.:</td><td>{{.PRNumber}}</td></tr>
  {{- end}}
</table>
`

const supplierLetterBody = `<p>Dear {{.CounterpartyName}},</p>
<p>Please quote your best price and delivery for the items below.</p>
<table class="lines">
  <thead>
    <tr><th>#</th><th>Inquiry</th><th>Product</th><th>Description</th><th>Size</th><th>Qty</th><th>Unit</th></tr>
  </thead>
  <tbody>
  {{- range .Rows}}
    <tr>
      <td class="num">{{.LineNo}}</td>
      <td>{{.InquiryNumber}}</td>
      <td>{{.ProductName}}</td>
      <td>{{truncate .Description 240}}</td>
      <td>{{.Size}}</td>
      <td class="num">{{formatQuantity .Quantity}}</td>
      <td>{{.Unit}}</td>
    </tr>
  {{- end}}
  </tbody>
</table>
`

const customerLetterBody = `<p>Dear {{.CounterpartyName}},</p>
<p>Thank you for your inquiry. We are pleased to offer the following.</p>
<table class="lines">
  <thead>
    <tr><th>#</th><th>Inquiry</th><th>Product</th><th>Description</th><th>Size</th><th>Qty</th><th>Unit</th><th>Unit Price</th><th>Total</th></tr>
  </thead>
  <tbody>
  {{- range .Rows}}
    <tr>
      <td class="num">{{.LineNo}}</td>
      <td>{{.InquiryNumber}}</td>
      <td>{{.ProductName}}</td>
      <td>{{truncate .Description 240}}</td>
      <td>{{.Size}}</td>
      <td class="num">{{formatQuantity .Quantity}}</td>
      <td>{{.Unit}}</td>
      <td class="num">{{formatMoney .UnitPrice}}</td>
      <td class="num">{{formatMoney .Total}}</td>
    </tr>
  {{- end}}
    <tr class="total"><td colspan="8" class="num">Total</td><td class="num">{{formatMoney .Total}}</td></tr>
  </tbody>
</table>
`

const letterFoot = `{{- if .Remarks}}
<div class="remarks"><strong>Remarks</strong><br>{{nl2br .Remarks}}</div>
{{- end}}
<div class="contact">
  <p>For any clarification please contact:</p>
  {{- with .Contact}}{{if .Name}}
  <div>{{.Name}}{{if .Email}} &middot; {{.Email}}{{end}}{{if .Mobile}} &middot; {{.Mobile}}{{end}}</div>
  {{- end}}{{end}}
  {{- range .Representatives}}
  <div>{{.Name}}{{if .Email}} &middot; {{.Email}}{{end}}{{if .Mobile}} &middot; {{.Mobile}}{{end}}</div>
  {{- end}}
</div>
</body>
</html>
`
