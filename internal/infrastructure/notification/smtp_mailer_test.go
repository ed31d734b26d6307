package notification

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap/zaptest"
)

type recordingDialer struct {
	sent []*mail.Msg
	err  error
}

func (d *recordingDialer) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, messages...)
	return nil
}

func sampleMail() *dispatchapp.MailMessage {
	return &dispatchapp.MailMessage{
		To:       []string{"buyer@acme.example"},
		ReplyTo:  []string{"rep@desk.example", "ops@desk.example"},
		Subject:  "Inquiry to Supplier - Acme",
		HTMLBody: "<p>Please quote</p>",
		Attachments: []dispatchapp.FileAttachment{
			{Filename: "ToSupplier-Acme-1.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: []byte("xlsx")},
			{Filename: "ToSupplier-Acme-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
		},
	}
}

func TestNewSMTPMailSender_Validation(t *testing.T) {
	_, err := NewSMTPMailSender(nil, nil)
	assert.Error(t, err)

	_, err = NewSMTPMailSender(&config.MailConfig{Host: "smtp.example"}, nil)
	assert.ErrorContains(t, err, "from address")

	sender, err := NewSMTPMailSender(&config.MailConfig{
		Host:     "smtp.example",
		Port:     587,
		From:     "desk@example.com",
		Username: "desk",
		Password: "secret",
		Timeout:  10 * time.Second,
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, sender.client)
}

func TestSMTPMailSender_Send(t *testing.T) {
	dialer := &recordingDialer{}
	sender := &SMTPMailSender{
		client:   dialer,
		from:     "desk@example.com",
		fromName: "Trading Desk",
		logger:   zaptest.NewLogger(t),
	}

	require.NoError(t, sender.Send(context.Background(), sampleMail()))
	require.Len(t, dialer.sent, 1)

	var buf bytes.Buffer
	_, err := dialer.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "Trading Desk")
	assert.Contains(t, raw, "<desk@example.com>")
	assert.Contains(t, raw, "buyer@acme.example")
	assert.Contains(t, raw, "Reply-To: rep@desk.example, ops@desk.example")
	assert.Contains(t, raw, "Subject: Inquiry to Supplier - Acme")
	assert.Contains(t, raw, `filename="ToSupplier-Acme-1.xlsx"`)
	assert.Contains(t, raw, `filename="ToSupplier-Acme-1.pdf"`)
	assert.Contains(t, raw, "application/pdf")
}

func TestSMTPMailSender_SendErrors(t *testing.T) {
	dialer := &recordingDialer{err: errors.New("connection refused")}
	sender := &SMTPMailSender{client: dialer, from: "desk@example.com", logger: zaptest.NewLogger(t)}

	err := sender.Send(context.Background(), &dispatchapp.MailMessage{})
	assert.ErrorIs(t, err, ErrNoRecipients)

	err = sender.Send(context.Background(), &dispatchapp.MailMessage{To: []string{"not an address"}})
	assert.ErrorContains(t, err, "invalid to address")

	err = sender.Send(context.Background(), sampleMail())
	assert.ErrorContains(t, err, "connection refused")
}

func TestLogMailSender(t *testing.T) {
	sender := NewLogMailSender(zaptest.NewLogger(t))
	assert.NoError(t, sender.Send(context.Background(), sampleMail()))
	assert.ErrorIs(t, sender.Send(context.Background(), &dispatchapp.MailMessage{}), ErrNoRecipients)
}
