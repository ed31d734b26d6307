package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/printing"
	"github.com/erp/sourcing/internal/infrastructure/spreadsheet"
	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// Artifact is a generated file held in memory until it is published
type Artifact struct {
	Kind        sourcing.AttachmentKind
	Filename    string
	ContentType string
	Data        []byte
}

// Documents are the two artifacts produced for one dispatch
type Documents struct {
	Spreadsheet Artifact
	Letter      Artifact
}

// Artifacts returns the spreadsheet then the letter
func (d *Documents) Artifacts() []Artifact {
	return []Artifact{d.Spreadsheet, d.Letter}
}

// DocumentInput is everything the generator needs for one dispatch.
// Inquiries must already be in line order.
type DocumentInput struct {
	Direction             sourcing.Direction
	Counterparty          sourcing.Counterparty
	Inquiries             []sourcing.Inquiry
	Representatives       []sourcing.StaffMember
	Remarks               string
	TimezoneOffsetMinutes int
	GeneratedAt           time.Time
}

// LetterSettings are the sender details printed on every letter
type LetterSettings struct {
	CompanyName string
	Contact     printing.LetterContact
}

// DocumentGenerator renders the spreadsheet and the PDF letter for a dispatch
type DocumentGenerator struct {
	renderer  TemplateRenderer
	converter PDFConverter
	sheets    SpreadsheetWriter
	images    ObjectStorage
	settings  LetterSettings
	metrics   Metrics
	logger    *zap.Logger
}

// NewDocumentGenerator creates a new DocumentGenerator.
// images is used to fetch inquiry pictures; it may be nil.
func NewDocumentGenerator(
	renderer TemplateRenderer,
	converter PDFConverter,
	sheets SpreadsheetWriter,
	images ObjectStorage,
	settings LetterSettings,
	logger *zap.Logger,
) *DocumentGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentGenerator{
		renderer:  renderer,
		converter: converter,
		sheets:    sheets,
		images:    images,
		settings:  settings,
		metrics:   nopMetrics{},
		logger:    logger,
	}
}

// Generate renders both artifacts. Nothing is stored.
func (g *DocumentGenerator) Generate(ctx context.Context, in *DocumentInput) (*Documents, error) {
	if len(in.Inquiries) == 0 {
		return nil, sourcing.ErrNoEligibleItems
	}

	started := time.Now()
	sheetData, err := g.sheets.Write(g.buildSheet(ctx, in))
	if err != nil {
		return nil, fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	g.metrics.RecordRender(ctx, string(sourcing.AttachmentSpreadsheet), time.Since(started))

	letter := g.buildLetterData(in)
	html, err := g.renderer.RenderString("dispatch-letter-"+string(in.Direction), printing.LetterTemplate(in.Direction), letter)
	if err != nil {
		return nil, fmt.Errorf("failed to render letter: %w", err)
	}

	orientation := printing.OrientationPortrait
	if in.Direction == sourcing.DirectionToCustomer {
		orientation = printing.OrientationLandscape
	}
	var pdf *printing.RenderResult
	telemetry.WithProfileLabels(ctx, func(ctx context.Context) {
		pdf, err = g.converter.Render(ctx, &printing.RenderRequest{
			HTML:        html,
			PaperSize:   printing.PaperSizeA4,
			Orientation: orientation,
			Margins:     printing.DefaultMargins(),
			Title:       letter.Title,
			FooterHTML:  printing.LetterFooter,
		})
	}, "render", "letter", "direction", string(in.Direction))
	if err != nil {
		if printing.IsTimeout(err) {
			g.logger.Warn("Letter conversion timed out", zap.String("counterparty", in.Counterparty.Name))
		}
		return nil, fmt.Errorf("failed to convert letter to PDF: %w", err)
	}
	g.metrics.RecordRender(ctx, string(sourcing.AttachmentLetter), pdf.RenderDuration)
	g.logger.Debug("Letter rendered",
		zap.Int("pages", pdf.PageCount),
		zap.Duration("duration", pdf.RenderDuration))

	return &Documents{
		Spreadsheet: Artifact{
			Kind:        sourcing.AttachmentSpreadsheet,
			Filename:    ArtifactFilename(in.Direction, in.Counterparty.Name, in.GeneratedAt, "xlsx"),
			ContentType: contentTypeXLSX,
			Data:        sheetData,
		},
		Letter: Artifact{
			Kind:        sourcing.AttachmentLetter,
			Filename:    ArtifactFilename(in.Direction, in.Counterparty.Name, in.GeneratedAt, "pdf"),
			ContentType: contentTypePDF,
			Data:        pdf.PDFData,
		},
	}, nil
}

func (g *DocumentGenerator) buildSheet(ctx context.Context, in *DocumentInput) *spreadsheet.Sheet {
	sheet := &spreadsheet.Sheet{
		Name:    in.Direction.FilePrefix(),
		Columns: ColumnsFor(in.Direction),
		Rows:    make([]spreadsheet.Row, 0, len(in.Inquiries)),
	}

	lineTotals := make([]decimal.Decimal, 0, len(in.Inquiries))
	for i := range in.Inquiries {
		inq := &in.Inquiries[i]
		image := g.fetchImage(ctx, inq)
		if in.Direction == sourcing.DirectionToCustomer {
			row := newCustomerRow(i+1, inq, image)
			lineTotals = append(lineTotals, row.Total)
			sheet.Rows = append(sheet.Rows, spreadsheet.Row{Values: row.Values()})
			continue
		}
		sheet.Rows = append(sheet.Rows, spreadsheet.Row{Values: newSupplierRow(i+1, inq, image).Values()})
	}

	if in.Direction == sourcing.DirectionToCustomer {
		sheet.TotalLabel = "Total"
		sheet.Totals = map[string]any{"total": sourcing.AggregateTotal(lineTotals)}
	}
	return sheet
}

// fetchImage loads an inquiry picture. Failures leave the cell empty.
func (g *DocumentGenerator) fetchImage(ctx context.Context, inq *sourcing.Inquiry) *spreadsheet.Image {
	if inq.ImageKey == "" || g.images == nil {
		return nil
	}
	data, err := g.images.Get(ctx, inq.ImageKey)
	if err != nil {
		g.logger.Warn("Failed to fetch inquiry image",
			zap.String("inquiry_id", inq.ID.String()),
			zap.String("image_key", inq.ImageKey),
			zap.Error(err))
		return nil
	}
	return &spreadsheet.Image{Data: data}
}

func (g *DocumentGenerator) buildLetterData(in *DocumentInput) *printing.LetterData {
	site, prNumber := sourcing.CommonGrouping(in.Inquiries)
	data := &printing.LetterData{
		Title:            "Inquiry " + in.Direction.Label() + " - " + in.Counterparty.Name,
		DirectionLabel:   in.Direction.Label(),
		CompanyName:      g.settings.CompanyName,
		CounterpartyName: in.Counterparty.Name,
		Site:             site,
		PRNumber:         prNumber,
		Date:             OperatorTime(in.GeneratedAt, in.TimezoneOffsetMinutes),
		Contact:          g.settings.Contact,
		Rows:             make([]printing.LetterRow, len(in.Inquiries)),
		Remarks:          in.Remarks,
	}
	for _, rep := range in.Representatives {
		data.Representatives = append(data.Representatives, printing.LetterContact{
			Name:   rep.Name,
			Email:  rep.Email,
			Mobile: rep.Mobile,
		})
	}

	lineTotals := make([]decimal.Decimal, 0, len(in.Inquiries))
	for i := range in.Inquiries {
		inq := &in.Inquiries[i]
		row := printing.LetterRow{
			LineNo:        i + 1,
			InquiryNumber: inq.InquiryNumber,
			ProductName:   inq.ProductName,
			Description:   inq.Description,
			Size:          inq.Size,
			Quantity:      inq.Quantity,
			Unit:          inq.Unit,
		}
		if in.Direction == sourcing.DirectionToCustomer && inq.CustomerPrice != nil {
			price := inq.CustomerPrice.Round(sourcing.MoneyPlaces)
			total := inq.LineTotal()
			row.UnitPrice = &price
			row.Total = &total
			lineTotals = append(lineTotals, total)
		}
		data.Rows[i] = row
	}
	data.Total = sourcing.AggregateTotal(lineTotals)
	return data
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ArtifactFilename builds "<Direction>-<Counterparty>-<epochMillis>.<ext>".
// Characters outside [A-Za-z0-9_] in the counterparty name become underscores.
func ArtifactFilename(direction sourcing.Direction, counterpartyName string, at time.Time, ext string) string {
	name := unsafeFilenameChars.ReplaceAllString(counterpartyName, "_")
	if name == "" {
		name = "Counterparty"
	}
	return direction.FilePrefix() + "-" + name + "-" + strconv.FormatInt(at.UnixMilli(), 10) + "." + ext
}

// OperatorTime shifts t into the operator's zone. offsetMinutes follows the
// browser convention of minutes behind UTC, so UTC+8 is -480.
func OperatorTime(t time.Time, offsetMinutes int) time.Time {
	zone := time.FixedZone("operator", -offsetMinutes*60)
	return t.In(zone)
}
