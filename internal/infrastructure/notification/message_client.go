package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Ensure APIMessageSender implements MessageSender
var _ dispatchapp.MessageSender = (*APIMessageSender)(nil)

// ErrGatewayRejected wraps a non-2xx answer from the message gateway
var ErrGatewayRejected = errors.New("message gateway rejected the request")

// APIMessageSender posts instant messages to an HTTP gateway with resty.
// Messages go to POST {base_url}/{sender_id}/messages.
type APIMessageSender struct {
	client   *resty.Client
	senderID string
	logger   *zap.Logger
}

// NewAPIMessageSender creates a gateway client from the messaging configuration
func NewAPIMessageSender(cfg *config.MessagingConfig, logger *zap.Logger) (*APIMessageSender, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("messaging base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &APIMessageSender{
		client:   client,
		senderID: cfg.SenderID,
		logger:   logger,
	}, nil
}

// gatewayRequest is the JSON body accepted by the gateway
type gatewayRequest struct {
	To       string           `json:"to"`
	Type     string           `json:"type"`
	Text     *gatewayText     `json:"text,omitempty"`
	Template *gatewayTemplate `json:"template,omitempty"`
	Document *gatewayDocument `json:"document,omitempty"`
}

type gatewayText struct {
	Body string `json:"body"`
}

type gatewayDocument struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type gatewayTemplate struct {
	Name       string             `json:"name"`
	Language   gatewayLanguage    `json:"language"`
	Components []gatewayComponent `json:"components,omitempty"`
}

type gatewayLanguage struct {
	Code string `json:"code"`
}

type gatewayComponent struct {
	Type       string             `json:"type"`
	Parameters []gatewayParameter `json:"parameters"`
}

type gatewayParameter struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Document *gatewayDocument `json:"document,omitempty"`
}

// gatewayResponse is the gateway's answer; only the message ID is used
type gatewayResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gatewayError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers payload to one E.164 recipient
func (s *APIMessageSender) Send(ctx context.Context, recipient string, payload *dispatchapp.MessagePayload) error {
	body, err := buildGatewayRequest(recipient, payload)
	if err != nil {
		return err
	}

	var result gatewayResponse
	var apiErr gatewayError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/" + s.senderID + "/messages")
	if err != nil {
		return fmt.Errorf("message gateway unavailable: %w", err)
	}
	if resp.IsError() {
		detail := apiErr.Error.Message
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrGatewayRejected, resp.StatusCode(), detail)
	}

	messageID := ""
	if len(result.Messages) > 0 {
		messageID = result.Messages[0].ID
	}
	s.logger.Info("Instant message sent",
		zap.String("to", recipient),
		zap.String("kind", string(payload.Kind)),
		zap.String("message_id", messageID))
	return nil
}

func buildGatewayRequest(recipient string, payload *dispatchapp.MessagePayload) (*gatewayRequest, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, ErrNoRecipients
	}
	if payload == nil {
		return nil, errors.New("message payload is nil")
	}

	req := &gatewayRequest{To: recipient, Type: string(payload.Kind)}
	switch payload.Kind {
	case dispatchapp.MessageKindText:
		req.Text = &gatewayText{Body: payload.Text}
	case dispatchapp.MessageKindDocument:
		if payload.DocumentURL == "" {
			return nil, errors.New("document message requires a document URL")
		}
		req.Document = &gatewayDocument{
			Link:     payload.DocumentURL,
			Filename: payload.DocumentFilename,
			Caption:  payload.Caption,
		}
	case dispatchapp.MessageKindTemplate:
		if payload.TemplateName == "" {
			return nil, errors.New("template message requires a template name")
		}
		tmpl := &gatewayTemplate{
			Name:     payload.TemplateName,
			Language: gatewayLanguage{Code: payload.Language},
		}
		if payload.DocumentURL != "" {
			tmpl.Components = append(tmpl.Components, gatewayComponent{
				Type: "header",
				Parameters: []gatewayParameter{{
					Type: "document",
					Document: &gatewayDocument{
						Link:     payload.DocumentURL,
						Filename: payload.DocumentFilename,
					},
				}},
			})
		}
		if len(payload.TemplateParams) > 0 {
			params := make([]gatewayParameter, len(payload.TemplateParams))
			for i, p := range payload.TemplateParams {
				params[i] = gatewayParameter{Type: "text", Text: p}
			}
			tmpl.Components = append(tmpl.Components, gatewayComponent{Type: "body", Parameters: params})
		}
		req.Template = tmpl
	default:
		return nil, fmt.Errorf("unsupported message kind %q", payload.Kind)
	}
	return req, nil
}
