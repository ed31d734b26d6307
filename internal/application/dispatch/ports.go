package dispatch

import (
	"context"
	"time"

	"github.com/erp/sourcing/internal/infrastructure/printing"
	"github.com/erp/sourcing/internal/infrastructure/spreadsheet"
)

// ObjectStorage stores generated artifacts and inquiry images
type ObjectStorage interface {
	// Put writes data under key, replacing any existing object
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get reads the object stored under key
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error
	// URL returns a link recipients can open without credentials
	URL(ctx context.Context, key string) (string, error)
}

// TemplateRenderer renders an HTML template string with data
type TemplateRenderer interface {
	RenderString(name, tmpl string, data any) (string, error)
}

// PDFConverter turns rendered HTML into a PDF document
type PDFConverter interface {
	Render(ctx context.Context, req *printing.RenderRequest) (*printing.RenderResult, error)
}

// SpreadsheetWriter encodes a sheet as XLSX bytes
type SpreadsheetWriter interface {
	Write(sheet *spreadsheet.Sheet) ([]byte, error)
}

// FileAttachment is an in-memory file sent with an email
type FileAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MailMessage is one outgoing email
type MailMessage struct {
	To          []string
	ReplyTo     []string
	Subject     string
	HTMLBody    string
	Attachments []FileAttachment
}

// MailSender delivers email
type MailSender interface {
	Send(ctx context.Context, msg *MailMessage) error
}

// MessageKind selects how an instant message is composed
type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindTemplate MessageKind = "template"
	MessageKindDocument MessageKind = "document"
)

// MessagePayload is the content of one instant message
type MessagePayload struct {
	Kind             MessageKind
	Text             string
	TemplateName     string
	Language         string
	TemplateParams   []string
	DocumentURL      string
	DocumentFilename string
	Caption          string
}

// MessageSender delivers an instant message to one E.164 number
type MessageSender interface {
	Send(ctx context.Context, recipient string, payload *MessagePayload) error
}

// Metrics receives dispatch measurements. Labels are plain strings so any
// metrics backend can implement it.
type Metrics interface {
	RecordDispatch(ctx context.Context, operation, direction, outcome string)
	RecordLines(ctx context.Context, direction string, lines int)
	RecordSend(ctx context.Context, channel string, delivered bool, attempts int)
	RecordRender(ctx context.Context, kind string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordDispatch(context.Context, string, string, string) {}
func (nopMetrics) RecordLines(context.Context, string, int)               {}
func (nopMetrics) RecordSend(context.Context, string, bool, int)          {}
func (nopMetrics) RecordRender(context.Context, string, time.Duration)    {}
