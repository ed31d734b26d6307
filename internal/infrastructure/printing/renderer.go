package printing

import (
	"context"
	"errors"
	"time"
)

// RenderRequest asks for one HTML document to be printed to PDF.
// Margins are in millimeters; a zero Timeout uses the renderer default.
type RenderRequest struct {
	HTML        string
	PaperSize   PaperSize
	Orientation Orientation
	Margins     Margins
	Title       string // written into the document <title> when missing
	FooterHTML  string // Chrome footer template; may use pageNumber and totalPages
	Timeout     time.Duration
}

// RenderResult is a printed PDF
type RenderResult struct {
	PDFData        []byte
	PageCount      int
	RenderDuration time.Duration
}

// PDFRenderer prints HTML to PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

// Failure codes carried by RenderError
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidTemplate  = "INVALID_TEMPLATE"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
)

// RenderError is a template or PDF failure tagged with one of the ErrCode values
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a render that ran out of time
func IsTimeout(err error) bool {
	var renderErr *RenderError
	return errors.As(err, &renderErr) && renderErr.Code == ErrCodeRenderTimeout
}
