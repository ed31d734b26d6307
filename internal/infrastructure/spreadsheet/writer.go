package spreadsheet

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	defaultColumnWidth = 14.0
	defaultRowHeight   = 18.0
	headerRowHeight    = 30.0
	imagePadding       = 4 // pixels around an inline image
	pixelsToPoints     = 0.75
	maxSheetNameLength = 31
)

// XLSXWriter renders sheets to XLSX bytes with excelize
type XLSXWriter struct {
	maxImageWidth  uint
	maxImageHeight uint
	logger         *zap.Logger
}

// XLSXWriterOption configures an XLSXWriter
type XLSXWriterOption func(*XLSXWriter)

// WithImageBounds sets the box inline images are scaled to fit, in pixels
func WithImageBounds(maxWidth, maxHeight int) XLSXWriterOption {
	return func(w *XLSXWriter) {
		if maxWidth > 0 {
			w.maxImageWidth = uint(maxWidth)
		}
		if maxHeight > 0 {
			w.maxImageHeight = uint(maxHeight)
		}
	}
}

// WithLogger sets the logger used for skipped images
func WithLogger(logger *zap.Logger) XLSXWriterOption {
	return func(w *XLSXWriter) {
		w.logger = logger
	}
}

// NewXLSXWriter creates a writer. Images default to a 120x90 pixel box.
func NewXLSXWriter(opts ...XLSXWriterOption) *XLSXWriter {
	w := &XLSXWriter{
		maxImageWidth:  120,
		maxImageHeight: 90,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// cellStyles holds the style IDs registered for one workbook
type cellStyles struct {
	headers    map[Role]int
	text       int
	number     int
	money      int
	date       int
	total      int
	totalMoney int
}

// Write renders sheet as a single-worksheet workbook
func (w *XLSXWriter) Write(sheet *Sheet) ([]byte, error) {
	if sheet == nil {
		return nil, fmt.Errorf("sheet is nil")
	}
	if err := sheet.Validate(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	name := sanitizeSheetName(sheet.Name)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := registerStyles(f)
	if err != nil {
		return nil, err
	}

	if err := w.writeHeader(f, name, sheet.Columns, styles); err != nil {
		return nil, err
	}

	for i, row := range sheet.Rows {
		if err := w.writeRow(f, name, i+2, sheet.Columns, row, styles); err != nil {
			return nil, err
		}
	}

	if len(sheet.Totals) > 0 {
		if err := w.writeTotals(f, name, len(sheet.Rows)+2, sheet, styles); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *XLSXWriter) writeHeader(f *excelize.File, sheet string, columns []Column, styles *cellStyles) error {
	for i, col := range columns {
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := col.Width
		if width <= 0 {
			width = defaultColumnWidth
		}
		if err := f.SetColWidth(sheet, colName, colName, width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col.Key, err)
		}

		cell := colName + "1"
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return err
		}
		style, ok := styles.headers[col.Role]
		if !ok {
			style = styles.headers[RoleAuxiliary]
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return f.SetRowHeight(sheet, 1, headerRowHeight)
}

func (w *XLSXWriter) writeRow(f *excelize.File, sheet string, rowNum int, columns []Column, row Row, styles *cellStyles) error {
	height := defaultRowHeight

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}

		if err := f.SetCellStyle(sheet, cell, cell, styles.forKind(col.Kind)); err != nil {
			return err
		}

		value := row.Values[i]
		if col.Kind == KindImage {
			img, ok := value.(*Image)
			if !ok || img == nil || len(img.Data) == 0 {
				continue
			}
			pictureHeight, err := w.placeImage(f, sheet, cell, img)
			if err != nil {
				w.logger.Warn("Skipping inline image",
					zap.String("cell", cell),
					zap.Error(err))
				continue
			}
			if pictureHeight > height {
				height = pictureHeight
			}
			continue
		}

		if v, ok := cellValue(col.Kind, value); ok {
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}

	return f.SetRowHeight(sheet, rowNum, height)
}

func (w *XLSXWriter) writeTotals(f *excelize.File, sheet string, rowNum int, s *Sheet, styles *cellStyles) error {
	labelWritten := false
	for i, col := range s.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}

		style := styles.total
		if value, ok := s.Totals[col.Key]; ok {
			if col.Kind == KindMoney {
				style = styles.totalMoney
			}
			if v, ok := cellValue(col.Kind, value); ok {
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
		} else if !labelWritten && s.TotalLabel != "" {
			if err := f.SetCellValue(sheet, cell, s.TotalLabel); err != nil {
				return err
			}
			labelWritten = true
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// placeImage scales img to the writer's box and anchors it in cell.
// It returns the row height in points needed to show the picture.
func (w *XLSXWriter) placeImage(f *excelize.File, sheet, cell string, img *Image) (float64, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := decoded.Bounds()
	if uint(bounds.Dx()) > w.maxImageWidth || uint(bounds.Dy()) > w.maxImageHeight {
		decoded = resize.Thumbnail(w.maxImageWidth, w.maxImageHeight, decoded, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return 0, fmt.Errorf("encode image: %w", err)
	}

	if err := f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      buf.Bytes(),
		Format: &excelize.GraphicOptions{
			OffsetX:         imagePadding,
			OffsetY:         imagePadding,
			LockAspectRatio: true,
			Positioning:     "oneCell",
		},
	}); err != nil {
		return 0, fmt.Errorf("add picture: %w", err)
	}

	return float64(decoded.Bounds().Dy()+2*imagePadding) * pixelsToPoints, nil
}

func (s *cellStyles) forKind(kind Kind) int {
	switch kind {
	case KindNumber:
		return s.number
	case KindMoney:
		return s.money
	case KindDate:
		return s.date
	default:
		return s.text
	}
}

// cellValue converts a row value to something excelize can store.
// It reports false for values that should leave the cell empty.
func cellValue(kind Kind, value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case decimal.Decimal:
		if kind == KindText {
			return v.String(), true
		}
		return v.InexactFloat64(), true
	case *decimal.Decimal:
		if v == nil {
			return nil, false
		}
		return cellValue(kind, *v)
	case time.Time:
		if v.IsZero() {
			return nil, false
		}
		return v, true
	case *time.Time:
		if v == nil {
			return nil, false
		}
		return cellValue(kind, *v)
	case string:
		if v == "" {
			return nil, false
		}
		return v, true
	default:
		return v, true
	}
}

func registerStyles(f *excelize.File) (*cellStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#A6A6A6", Style: 1},
		{Type: "top", Color: "#A6A6A6", Style: 1},
		{Type: "right", Color: "#A6A6A6", Style: 1},
		{Type: "bottom", Color: "#A6A6A6", Style: 1},
	}
	body := &excelize.Alignment{Vertical: "top", WrapText: true}

	styles := &cellStyles{headers: make(map[Role]int, len(headerStyles))}
	for role, hs := range headerStyles {
		id, err := f.NewStyle(&excelize.Style{
			Border: border,
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{hs.Fill}},
			Font:   &excelize.Font{Bold: hs.Bold, Color: hs.FontColor},
			Alignment: &excelize.Alignment{
				Horizontal: "center",
				Vertical:   "center",
				WrapText:   true,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s header style: %w", role, err)
		}
		styles.headers[role] = id
	}

	moneyFmt := "#,##0.00"
	numberFmt := "#,##0.####"
	dateFmt := "dd mmm yyyy"

	specs := []struct {
		target *int
		style  *excelize.Style
	}{
		{&styles.text, &excelize.Style{Border: border, Alignment: body}},
		{&styles.number, &excelize.Style{Border: border, Alignment: body, CustomNumFmt: &numberFmt}},
		{&styles.money, &excelize.Style{Border: border, Alignment: body, CustomNumFmt: &moneyFmt}},
		{&styles.date, &excelize.Style{Border: border, Alignment: body, CustomNumFmt: &dateFmt}},
		{&styles.total, &excelize.Style{Border: border, Font: &excelize.Font{Bold: true}}},
		{&styles.totalMoney, &excelize.Style{Border: border, Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt}},
	}
	for _, spec := range specs {
		id, err := f.NewStyle(spec.style)
		if err != nil {
			return nil, fmt.Errorf("failed to create cell style: %w", err)
		}
		*spec.target = id
	}
	return styles, nil
}

// sanitizeSheetName strips characters Excel rejects and enforces the length limit
func sanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "'")
	if cleaned == "" {
		return "Sheet1"
	}
	if runes := []rune(cleaned); len(runes) > maxSheetNameLength {
		cleaned = string(runes[:maxSheetNameLength])
	}
	return cleaned
}
