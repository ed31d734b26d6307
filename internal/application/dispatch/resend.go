package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ResendCoordinator delivers an existing batch again. It regenerates the
// artifacts from the batch's original lines and appends a history entry;
// lines and inquiry state are never touched.
type ResendCoordinator struct {
	batches        sourcing.DispatchBatchRepository
	inquiries      sourcing.InquiryRepository
	counterparties sourcing.CounterpartyRepository
	staff          sourcing.StaffRepository
	generator      *DocumentGenerator
	publisher      *ArtifactPublisher
	resolver       *RecipientResolver
	fanout         *Fanout
	logger         *zap.Logger
	now            func() time.Time
}

// Resend regenerates, republishes and redelivers the batch
func (c *ResendCoordinator) Resend(ctx context.Context, batchID uuid.UUID, req *ResendDispatchRequest, actor uuid.UUID) (*DispatchResult, error) {
	batch, err := c.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(trace.SpanFromContext(ctx),
		telemetry.SpanAttrDirection, string(batch.Direction),
		telemetry.SpanAttrCounterpartyID, batch.CounterpartyID.String())

	names, err := c.counterparties.FindNames(ctx, batch.Direction, []uuid.UUID{batch.CounterpartyID})
	if err != nil {
		return nil, fmt.Errorf("failed to load counterparty: %w", err)
	}
	name, ok := names[batch.CounterpartyID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	counterparty := sourcing.Counterparty{ID: batch.CounterpartyID, Kind: batch.Direction.CounterpartyKind(), Name: name}

	inquiries, err := c.resendLines(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(inquiries) == 0 {
		return nil, sourcing.ErrNoEligibleItems
	}

	staff, err := loadRepresentatives(ctx, c.staff, inquiries)
	if err != nil {
		return nil, err
	}
	recipients := c.resolver.Resolve(staff, req.ExternalEmails, req.ExternalNumbers)

	now := c.now()
	docs, err := c.generator.Generate(ctx, &DocumentInput{
		Direction:             batch.Direction,
		Counterparty:          counterparty,
		Inquiries:             inquiries,
		Representatives:       staff,
		Remarks:               batch.Remarks,
		TimezoneOffsetMinutes: req.TimezoneOffsetMinutes,
		GeneratedAt:           now,
	})
	if err != nil {
		return nil, err
	}

	links, err := c.publisher.Publish(ctx, docs, &batch.ID, actor)
	if err != nil {
		return nil, err
	}

	outcome := c.fanout.Deliver(ctx, &Delivery{
		Mode:             DeliveryResend,
		Direction:        batch.Direction,
		CounterpartyName: counterparty.Name,
		Site:             batch.Site,
		PRNumber:         batch.PRNumber,
		LineCount:        len(inquiries),
		Remarks:          batch.Remarks,
		Email:            req.Email,
		Message:          req.Message,
		Recipients:       recipients,
		Documents:        docs,
		Links:            links,
	})

	entry := sourcing.NewResendHistoryEntry(batch.ID, outcome.EmailSent, outcome.MessageSent, actor, c.now())
	if err := c.batches.AppendResend(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record resend: %w", err)
	}

	c.logger.Info("Dispatch batch resent",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("lines", len(inquiries)),
		zap.Bool("email_sent", outcome.EmailSent),
		zap.Bool("message_sent", outcome.MessageSent))

	return deliveredResult(batch.ID, links, outcome), nil
}

// resendLines loads the batch's inquiries in line order. Supplier batches
// keep only lines that are still active.
func (c *ResendCoordinator) resendLines(ctx context.Context, batch *sourcing.DispatchBatch) ([]sourcing.Inquiry, error) {
	loaded, err := c.inquiries.FindByIDs(ctx, batch.InquiryIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load batch inquiries: %w", err)
	}
	byID := make(map[uuid.UUID]sourcing.Inquiry, len(loaded))
	for _, inq := range loaded {
		byID[inq.ID] = inq
	}

	lines := make([]sourcing.Inquiry, 0, len(batch.Lines))
	for _, line := range batch.Lines {
		inq, ok := byID[line.InquiryID]
		if !ok {
			continue
		}
		if batch.Direction == sourcing.DirectionToSupplier && !inq.IsResendable() {
			continue
		}
		lines = append(lines, inq)
	}
	return lines, nil
}

// loadRepresentatives returns the staff assigned to inquiries, first-seen order
func loadRepresentatives(ctx context.Context, staff sourcing.StaffRepository, inquiries []sourcing.Inquiry) ([]sourcing.StaffMember, error) {
	ids := make([]uuid.UUID, 0, len(inquiries))
	for _, inq := range inquiries {
		if inq.RepresentativeID != nil {
			ids = append(ids, *inq.RepresentativeID)
		}
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	members, err := staff.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load representatives: %w", err)
	}

	byID := make(map[uuid.UUID]sourcing.StaffMember, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	ordered := make([]sourcing.StaffMember, 0, len(members))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}
