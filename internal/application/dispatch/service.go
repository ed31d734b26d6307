package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the dispatch service is built from
type Dependencies struct {
	Inquiries      sourcing.InquiryRepository
	Batches        sourcing.DispatchBatchRepository
	Attachments    sourcing.AttachmentRepository
	Counterparties sourcing.CounterpartyRepository
	Staff          sourcing.StaffRepository
	Scope          TransactionScope

	Storage   ObjectStorage
	Renderer  TemplateRenderer
	Converter PDFConverter
	Sheets    SpreadsheetWriter
	Mail      MailSender
	Messages  MessageSender

	// Idempotency may be nil, in which case keys are ignored
	Idempotency shared.IdempotencyStore
	// Metrics may be nil
	Metrics Metrics
}

// Config tunes the dispatch service
type Config struct {
	LiveSendingEnabled bool
	DefaultRegion      string
	IdempotencyTTL     time.Duration
	Letter             LetterSettings
	Templates          MessageTemplates
	MaxSendAttempts    int
	SendRetryInterval  time.Duration
}

// Service runs dispatch create, resend and the read operations behind them
type Service struct {
	selector       *EligibilitySelector
	generator      *DocumentGenerator
	transactor     *Transactor
	publisher      *ArtifactPublisher
	resolver       *RecipientResolver
	fanout         *Fanout
	resender       *ResendCoordinator
	batches        sourcing.DispatchBatchRepository
	attachments    sourcing.AttachmentRepository
	counterparties sourcing.CounterpartyRepository
	staff          sourcing.StaffRepository
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewService wires the dispatch stages together
func NewService(deps Dependencies, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyConfig().TTL
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	s := &Service{
		selector:       NewEligibilitySelector(deps.Inquiries, deps.Counterparties),
		generator:      NewDocumentGenerator(deps.Renderer, deps.Converter, deps.Sheets, deps.Storage, cfg.Letter, logger),
		transactor:     NewTransactor(deps.Scope, logger),
		publisher:      NewArtifactPublisher(deps.Storage, deps.Attachments, logger),
		resolver:       NewRecipientResolver(cfg.LiveSendingEnabled, cfg.DefaultRegion, logger),
		batches:        deps.Batches,
		attachments:    deps.Attachments,
		counterparties: deps.Counterparties,
		staff:          deps.Staff,
		idempotency:    deps.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
	s.generator.metrics = metrics
	runner := NewJobRunner(cfg.MaxSendAttempts, cfg.SendRetryInterval, logger)
	runner.metrics = metrics
	s.fanout = NewFanout(deps.Mail, deps.Messages, deps.Renderer, runner, cfg.Templates, logger)
	s.resender = &ResendCoordinator{
		batches:        deps.Batches,
		inquiries:      deps.Inquiries,
		counterparties: deps.Counterparties,
		staff:          deps.Staff,
		generator:      s.generator,
		publisher:      s.publisher,
		resolver:       s.resolver,
		fanout:         s.fanout,
		logger:         logger,
		now:            func() time.Time { return s.now() },
	}
	return s
}

// CreateDispatch sends the selected inquiries to a counterparty as a new batch.
// With Preview set it only generates and stores the documents.
func (s *Service) CreateDispatch(ctx context.Context, direction sourcing.Direction, req *CreateDispatchRequest, actor uuid.UUID) (result *DispatchResult, err error) {
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Unknown dispatch direction")
	}
	operation := "create"
	if req.Preview {
		operation = "preview"
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", operation,
		telemetry.WithAttribute(telemetry.SpanAttrDirection, string(direction)),
		telemetry.WithAttribute(telemetry.SpanAttrCounterpartyID, req.CounterpartyID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPreview, req.Preview))
	defer func() { s.finish(ctx, span, operation, string(direction), result, err) }()

	if req.Preview {
		return s.outcome(s.createDispatch(ctx, direction, req, actor))
	}
	key := ""
	if req.IdempotencyKey != "" {
		key = "create:" + string(direction) + ":" + req.IdempotencyKey
	}
	return s.withIdempotency(ctx, key, func() (*DispatchResult, error) {
		return s.outcome(s.createDispatch(ctx, direction, req, actor))
	})
}

func (s *Service) createDispatch(ctx context.Context, direction sourcing.Direction, req *CreateDispatchRequest, actor uuid.UUID) (*DispatchResult, error) {
	counterparty, err := s.counterparties.FindCounterparty(ctx, direction, req.CounterpartyID)
	if err != nil {
		return nil, err
	}

	inquiries, err := s.selector.Select(ctx, direction, req.CounterpartyID, req.InquiryIDs)
	if err != nil {
		return nil, err
	}
	if len(inquiries) == 0 {
		return nil, sourcing.ErrNoEligibleItems
	}

	staff, err := loadRepresentatives(ctx, s.staff, inquiries)
	if err != nil {
		return nil, err
	}
	recipients := s.resolver.Resolve(staff, req.ExternalEmails, req.ExternalNumbers)

	docs, err := s.generator.Generate(ctx, &DocumentInput{
		Direction:             direction,
		Counterparty:          *counterparty,
		Inquiries:             inquiries,
		Representatives:       staff,
		Remarks:               req.Remarks,
		TimezoneOffsetMinutes: req.TimezoneOffsetMinutes,
		GeneratedAt:           s.now(),
	})
	if err != nil {
		return nil, err
	}

	if req.Preview {
		links, err := s.publisher.Publish(ctx, docs, nil, actor)
		if err != nil {
			return nil, err
		}
		return &DispatchResult{Success: true, SpreadsheetURL: links.SpreadsheetURL, PDFURL: links.PDFURL}, nil
	}

	batch, err := s.transactor.Commit(ctx, &CommitInput{
		Direction:      direction,
		CounterpartyID: counterparty.ID,
		Inquiries:      inquiries,
		Remarks:        req.Remarks,
		Actor:          actor,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLines(ctx, string(direction), len(batch.Lines))
	telemetry.SetAttributes(trace.SpanFromContext(ctx),
		telemetry.SpanAttrBatchID, batch.ID.String(),
		telemetry.SpanAttrLines, len(batch.Lines))

	links, err := s.publisher.Publish(ctx, docs, &batch.ID, actor)
	if err != nil {
		s.logger.Error("Batch committed but artifacts could not be published",
			zap.String("batch_id", batch.ID.String()),
			zap.Error(err))
		return nil, err
	}

	outcome := s.fanout.Deliver(ctx, &Delivery{
		Mode:             DeliveryCreate,
		Direction:        direction,
		CounterpartyName: counterparty.Name,
		Site:             batch.Site,
		PRNumber:         batch.PRNumber,
		LineCount:        len(batch.Lines),
		Remarks:          req.Remarks,
		Email:            req.Email,
		Message:          req.Message,
		Recipients:       recipients,
		Documents:        docs,
		Links:            links,
	})

	if err := s.batches.UpdateDeliveryFlags(ctx, batch.ID, outcome.EmailSent, outcome.MessageSent); err != nil {
		s.logger.Error("Failed to record delivery flags",
			zap.String("batch_id", batch.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("Dispatch batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.String("direction", string(direction)),
		zap.String("counterparty_id", counterparty.ID.String()),
		zap.Int("lines", len(batch.Lines)),
		zap.Bool("email_sent", outcome.EmailSent),
		zap.Bool("message_sent", outcome.MessageSent))

	return deliveredResult(batch.ID, links, outcome), nil
}

// ResendDispatch delivers an existing batch again
func (s *Service) ResendDispatch(ctx context.Context, batchID uuid.UUID, req *ResendDispatchRequest, actor uuid.UUID) (result *DispatchResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", "resend",
		telemetry.WithAttribute(telemetry.SpanAttrBatchID, batchID.String()))
	defer func() { s.finish(ctx, span, "resend", "", result, err) }()

	key := ""
	if req.IdempotencyKey != "" {
		key = "resend:" + batchID.String() + ":" + req.IdempotencyKey
	}
	return s.withIdempotency(ctx, key, func() (*DispatchResult, error) {
		return s.outcome(s.resender.Resend(ctx, batchID, req, actor))
	})
}

// GetBatch returns a batch with its attachments and resend history
func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	names, err := s.counterparties.FindNames(ctx, batch.Direction, []uuid.UUID{batch.CounterpartyID})
	if err != nil {
		return nil, fmt.Errorf("failed to load counterparty: %w", err)
	}
	attachments, err := s.attachments.FindByBatch(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	history, err := s.batches.FindResendHistory(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resend history: %w", err)
	}
	return toBatchResponse(batch, names[batch.CounterpartyID], attachments, history), nil
}

// ListEligible returns the inquiries the operator can send to a counterparty
func (s *Service) ListEligible(ctx context.Context, direction sourcing.Direction, counterpartyID uuid.UUID) ([]EligibleInquiryResponse, error) {
	if _, err := s.counterparties.FindCounterparty(ctx, direction, counterpartyID); err != nil {
		return nil, err
	}
	inquiries, err := s.selector.Eligible(ctx, direction, counterpartyID)
	if err != nil {
		return nil, err
	}
	items := make([]EligibleInquiryResponse, len(inquiries))
	for i := range inquiries {
		items[i] = toEligibleInquiryResponse(&inquiries[i])
	}
	return items, nil
}

// Worklist returns counterparties with inquiries waiting in direction
func (s *Service) Worklist(ctx context.Context, direction sourcing.Direction) ([]WorklistItemResponse, error) {
	counts, err := s.selector.Worklist(ctx, direction)
	if err != nil {
		return nil, err
	}
	items := make([]WorklistItemResponse, len(counts))
	for i, c := range counts {
		items[i] = WorklistItemResponse{CounterpartyID: c.CounterpartyID, Name: c.Name, Count: c.Count}
	}
	return items, nil
}

// finish ends a dispatch span and counts the request by outcome
func (s *Service) finish(ctx context.Context, span trace.Span, operation, direction string, result *DispatchResult, err error) {
	defer span.End()

	label := outcomeLabel(result, err)
	s.metrics.RecordDispatch(ctx, operation, direction, label)
	if err != nil {
		telemetry.RecordError(span, err)
		return
	}
	telemetry.SetAttributes(span, "dispatch.outcome", label)
	if result.EmailSent != nil && result.MessageSent != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrEmailSent, *result.EmailSent,
			telemetry.SpanAttrMessageSent, *result.MessageSent)
	}
}

// outcomeLabel names a dispatch outcome for metrics
func outcomeLabel(result *DispatchResult, err error) string {
	switch {
	case err != nil || result == nil:
		return "error"
	case result.Success:
		return "success"
	}
	switch result.Message {
	case sourcing.ErrNoEligibleItems.Message:
		return "no_eligible_items"
	case sourcing.ErrTransactionConflict.Message:
		return "conflict"
	case sourcing.ErrRequestInProgress.Message:
		return "in_progress"
	}
	return "rejected"
}

// outcome turns expected dispatch failures into an unsuccessful result.
// Anything else stays an error.
func (s *Service) outcome(result *DispatchResult, err error) (*DispatchResult, error) {
	if err == nil {
		return result, nil
	}
	for _, expected := range []*shared.DomainError{
		sourcing.ErrNoEligibleItems,
		sourcing.ErrTransactionConflict,
		sourcing.ErrRequestInProgress,
	} {
		if errors.Is(err, expected) {
			if expected == sourcing.ErrTransactionConflict {
				s.logger.Info("Dispatch rejected by a concurrent dispatch", zap.Error(err))
			}
			return failedResult(expected.Message), nil
		}
	}
	return nil, err
}

// withIdempotency runs fn at most once per key and replays its result.
// An empty key or a missing store runs fn directly.
func (s *Service) withIdempotency(ctx context.Context, key string, fn func() (*DispatchResult, error)) (*DispatchResult, error) {
	if key == "" || s.idempotency == nil {
		return fn()
	}

	if replay, handled := s.replay(ctx, key); handled {
		return replay, nil
	}

	claimed, err := s.idempotency.Claim(ctx, key, s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable, running request without a key",
			zap.String("key", key),
			zap.Error(err))
		return fn()
	}
	if !claimed {
		if replay, handled := s.replay(ctx, key); handled {
			return replay, nil
		}
		return failedResult(sourcing.ErrRequestInProgress.Message), nil
	}

	result, err := fn()
	if err != nil {
		if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(releaseErr))
		}
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err == nil {
		err = s.idempotency.Complete(ctx, key, encoded, s.idempotencyTTL)
	}
	if err != nil {
		s.logger.Warn("Failed to store idempotent result", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

// replay returns a stored result, or the in-progress failure while the first
// request is still running. handled is false when nothing is stored.
func (s *Service) replay(ctx context.Context, key string) (*DispatchResult, bool) {
	stored, found, err := s.idempotency.Lookup(ctx, key)
	if err != nil || !found {
		return nil, false
	}
	if stored == nil {
		return failedResult(sourcing.ErrRequestInProgress.Message), true
	}
	var result DispatchResult
	if err := json.Unmarshal(stored, &result); err != nil {
		s.logger.Warn("Discarding unreadable idempotent result", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	s.logger.Info("Replaying idempotent dispatch result", zap.String("key", key))
	return &result, true
}
