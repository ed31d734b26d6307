package notification

import (
	"context"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"go.uber.org/zap"
)

// LogMailSender records emails in the log instead of sending them
type LogMailSender struct {
	logger *zap.Logger
}

// NewLogMailSender creates a mail sender that only logs
func NewLogMailSender(logger *zap.Logger) *LogMailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailSender{logger: logger}
}

// Send logs the message envelope
func (s *LogMailSender) Send(_ context.Context, msg *dispatchapp.MailMessage) error {
	if msg == nil || len(msg.To) == 0 {
		return ErrNoRecipients
	}
	files := make([]string, len(msg.Attachments))
	for i, att := range msg.Attachments {
		files[i] = att.Filename
	}
	s.logger.Info("Email suppressed (log driver)",
		zap.Strings("to", msg.To),
		zap.Strings("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", files))
	return nil
}

// LogMessageSender records instant messages in the log instead of sending them
type LogMessageSender struct {
	logger *zap.Logger
}

// NewLogMessageSender creates a message sender that only logs
func NewLogMessageSender(logger *zap.Logger) *LogMessageSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMessageSender{logger: logger}
}

// Send validates and logs the payload
func (s *LogMessageSender) Send(_ context.Context, recipient string, payload *dispatchapp.MessagePayload) error {
	if _, err := buildGatewayRequest(recipient, payload); err != nil {
		return err
	}
	s.logger.Info("Instant message suppressed (log driver)",
		zap.String("to", recipient),
		zap.String("kind", string(payload.Kind)),
		zap.String("template", payload.TemplateName),
		zap.String("document", payload.DocumentURL))
	return nil
}

var (
	_ dispatchapp.MailSender    = (*LogMailSender)(nil)
	_ dispatchapp.MessageSender = (*LogMessageSender)(nil)
)
