// Package notification delivers dispatch notifications over email and an
// instant-message gateway, with logging stand-ins for environments where
// nothing may leave the building.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrNoRecipients is returned when a message has no To address
var ErrNoRecipients = errors.New("message has no recipients")

// Ensure SMTPMailSender implements MailSender
var _ dispatchapp.MailSender = (*SMTPMailSender)(nil)

// mailDialer sends built messages; *mail.Client satisfies it
type mailDialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailSender sends email through an SMTP relay with go-mail
type SMTPMailSender struct {
	client   mailDialer
	from     string
	fromName string
	logger   *zap.Logger
}

// NewSMTPMailSender creates a sender from the mail configuration.
// Authentication is only configured when a username is set.
func NewSMTPMailSender(cfg *config.MailConfig, logger *zap.Logger) (*SMTPMailSender, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, errors.New("mail host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail from address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []mail.Option{mail.WithTLSPortPolicy(mail.TLSOpportunistic)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPMailSender{
		client:   client,
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}, nil
}

// Send builds msg and delivers it in one SMTP session
func (s *SMTPMailSender) Send(ctx context.Context, msg *dispatchapp.MailMessage) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	s.logger.Info("Email sent",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

func (s *SMTPMailSender) buildMessage(msg *dispatchapp.MailMessage) (*mail.Msg, error) {
	if msg == nil || len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	m := mail.NewMsg()
	if s.fromName != "" {
		if err := m.FromFormat(s.fromName, s.from); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	if len(msg.ReplyTo) > 0 {
		m.SetGenHeader(mail.HeaderReplyTo, strings.Join(msg.ReplyTo, ", "))
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	for _, att := range msg.Attachments {
		opts := []mail.FileOption{}
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Data), opts...); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", att.Filename, err)
		}
	}

	return m, nil
}
