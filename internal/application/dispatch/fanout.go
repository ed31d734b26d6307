package dispatch

import (
	"context"
	"strconv"
	"strings"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"go.uber.org/zap"
)

// DeliveryMode distinguishes the first send of a batch from a resend
type DeliveryMode string

const (
	DeliveryCreate DeliveryMode = "create"
	DeliveryResend DeliveryMode = "resend"
)

// Resend message modes
const (
	ResendAsDocument = "document"
	ResendAsTemplate = "template"
)

// MessageTemplates names the gateway templates used for instant messages
type MessageTemplates struct {
	Create     string
	Resend     string
	Language   string
	ResendMode string // document or template
}

// Delivery is one fan-out request
type Delivery struct {
	Mode             DeliveryMode
	Direction        sourcing.Direction
	CounterpartyName string
	Site             string
	PRNumber         string
	LineCount        int
	Remarks          string
	Email            bool
	Message          bool
	Recipients       RecipientSet
	Documents        *Documents
	Links            *PublishedArtifacts
}

// DeliveryOutcome reports per channel whether at least one send succeeded
type DeliveryOutcome struct {
	EmailSent   bool
	MessageSent bool
}

// Fanout delivers a dispatch over email and instant message.
// Send failures are logged and only show up as a false flag.
type Fanout struct {
	mail      MailSender
	messages  MessageSender
	renderer  TemplateRenderer
	runner    *JobRunner
	templates MessageTemplates
	logger    *zap.Logger
}

// NewFanout creates a new Fanout
func NewFanout(
	mail MailSender,
	messages MessageSender,
	renderer TemplateRenderer,
	runner *JobRunner,
	templates MessageTemplates,
	logger *zap.Logger,
) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = NewJobRunner(1, 0, logger)
	}
	return &Fanout{
		mail:      mail,
		messages:  messages,
		renderer:  renderer,
		runner:    runner,
		templates: templates,
		logger:    logger,
	}
}

// Deliver sends on every requested channel and never fails
func (f *Fanout) Deliver(ctx context.Context, d *Delivery) DeliveryOutcome {
	var outcome DeliveryOutcome
	if d.Email {
		outcome.EmailSent = f.deliverEmail(ctx, d)
	}
	if d.Message {
		outcome.MessageSent = f.deliverMessages(ctx, d)
	}
	return outcome
}

func (f *Fanout) deliverEmail(ctx context.Context, d *Delivery) bool {
	if !d.Recipients.HasEmail() {
		f.logger.Warn("Email requested but no valid recipients")
		return false
	}

	subject := Subject(d.Direction, d.CounterpartyName, d.Site, d.PRNumber)
	body, err := f.renderer.RenderString("dispatch-email", emailBodyTemplate, map[string]any{
		"Subject":      subject,
		"Counterparty": d.CounterpartyName,
		"Direction":    d.Direction.Label(),
		"Lines":        d.LineCount,
		"Resend":       d.Mode == DeliveryResend,
		"Remarks":      d.Remarks,
	})
	if err != nil {
		f.logger.Error("Failed to render email body", zap.Error(err))
		return false
	}

	msg := &MailMessage{
		To:       d.Recipients.To,
		ReplyTo:  d.Recipients.ReplyTo,
		Subject:  subject,
		HTMLBody: body,
	}
	for _, artifact := range d.Documents.Artifacts() {
		msg.Attachments = append(msg.Attachments, FileAttachment{
			Filename:    artifact.Filename,
			ContentType: artifact.ContentType,
			Data:        artifact.Data,
		})
	}

	job := &NotificationJob{
		Channel:   ChannelEmail,
		Recipient: strings.Join(msg.To, ","),
		send:      func(ctx context.Context) error { return f.mail.Send(ctx, msg) },
	}
	if err := f.runner.Run(ctx, job); err != nil {
		f.logger.Error("Email delivery failed",
			zap.Strings("to", msg.To),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		return false
	}
	return true
}

// deliverMessages sends one message per number, in order
func (f *Fanout) deliverMessages(ctx context.Context, d *Delivery) bool {
	if !d.Recipients.HasNumbers() {
		f.logger.Warn("Instant message requested but no valid numbers")
		return false
	}

	payload := f.messagePayload(d)
	sent := false
	for _, number := range d.Recipients.Numbers {
		recipient := number
		job := &NotificationJob{
			Channel:   ChannelMessage,
			Recipient: recipient,
			send:      func(ctx context.Context) error { return f.messages.Send(ctx, recipient, payload) },
		}
		if err := f.runner.Run(ctx, job); err != nil {
			f.logger.Error("Instant message delivery failed",
				zap.String("recipient", recipient),
				zap.Int("attempts", job.Attempts),
				zap.Error(err))
			continue
		}
		sent = true
	}
	return sent
}

func (f *Fanout) messagePayload(d *Delivery) *MessagePayload {
	caption := "Inquiry " + d.Direction.Label() + " - " + d.CounterpartyName
	document := &MessagePayload{
		Kind:             MessageKindDocument,
		DocumentURL:      d.Links.PDFURL,
		DocumentFilename: d.Documents.Letter.Filename,
		Caption:          caption,
	}

	if d.Mode == DeliveryResend {
		if f.templates.ResendMode != ResendAsTemplate || f.templates.Resend == "" {
			return document
		}
		return &MessagePayload{
			Kind:           MessageKindTemplate,
			TemplateName:   f.templates.Resend,
			Language:       f.templates.Language,
			TemplateParams: []string{d.CounterpartyName, d.Direction.Label(), d.Links.SpreadsheetURL, d.Links.PDFURL},
		}
	}

	if f.templates.Create == "" {
		return document
	}
	return &MessagePayload{
		Kind:             MessageKindTemplate,
		TemplateName:     f.templates.Create,
		Language:         f.templates.Language,
		TemplateParams:   []string{d.CounterpartyName, d.Direction.Label(), strconv.Itoa(d.LineCount)},
		DocumentURL:      d.Links.PDFURL,
		DocumentFilename: d.Documents.Letter.Filename,
	}
}

// Subject builds "Inquiry <direction> - <counterparty>[ - Site <site>][ - PR <pr>]"
func Subject(direction sourcing.Direction, counterparty, site, prNumber string) string {
	var b strings.Builder
	b.WriteString("Inquiry ")
	b.WriteString(direction.Label())
	b.WriteString(" - ")
	b.WriteString(counterparty)
	if site != "" {
		b.WriteString(" - Site ")
		b.WriteString(site)
	}
	if prNumber != "" {
		b.WriteString(" - PR ")
		b.WriteString(prNumber)
	}
	return b.String()
}

const emailBodyTemplate = `<p>Dear {{.Counterparty}},</p>
{{- if .Resend}}
<p>We are resending our inquiry ({{.Lines}} line{{if ne .Lines 1}}s{{end}}) for your attention.</p>
{{- else}}
<p>Please find attached our inquiry {{.Direction}} covering {{.Lines}} line{{if ne .Lines 1}}s{{end}}.</p>
{{- end}}
<p>The spreadsheet and the letter are attached to this email.</p>
{{- if .Remarks}}
<p><strong>Remarks:</strong><br>{{nl2br .Remarks}}</p>
{{- end}}
<p>Kind regards</p>`
