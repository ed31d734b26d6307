package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PublishedArtifacts holds the links recipients use to open the artifacts
type PublishedArtifacts struct {
	SpreadsheetURL string
	PDFURL         string
}

// ArtifactPublisher uploads generated artifacts and registers them as attachments
type ArtifactPublisher struct {
	storage     ObjectStorage
	attachments sourcing.AttachmentRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewArtifactPublisher creates a new ArtifactPublisher
func NewArtifactPublisher(storage ObjectStorage, attachments sourcing.AttachmentRepository, logger *zap.Logger) *ArtifactPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactPublisher{
		storage:     storage,
		attachments: attachments,
		logger:      logger,
		now:         time.Now,
	}
}

// Publish stores both artifacts. A nil batchID registers them as preview
// attachments, which the sweeper removes after the grace period.
func (p *ArtifactPublisher) Publish(ctx context.Context, docs *Documents, batchID *uuid.UUID, actor uuid.UUID) (*PublishedArtifacts, error) {
	urls := &PublishedArtifacts{}
	prefix := ArtifactPrefix(batchID, uuid.New())
	for _, artifact := range docs.Artifacts() {
		url, err := p.publishOne(ctx, artifact, prefix, batchID, actor)
		if err != nil {
			return nil, err
		}
		switch artifact.Kind {
		case sourcing.AttachmentSpreadsheet:
			urls.SpreadsheetURL = url
		case sourcing.AttachmentLetter:
			urls.PDFURL = url
		}
	}
	return urls, nil
}

func (p *ArtifactPublisher) publishOne(ctx context.Context, artifact Artifact, prefix string, batchID *uuid.UUID, actor uuid.UUID) (string, error) {
	key := prefix + artifact.Filename
	if err := p.storage.Put(ctx, key, artifact.Data, artifact.ContentType); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", artifact.Filename, err)
	}
	url, err := p.storage.URL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to build link for %s: %w", artifact.Filename, err)
	}

	attachment, err := sourcing.NewAttachment(batchID, artifact.Kind, artifact.Filename, key, url,
		artifact.ContentType, int64(len(artifact.Data)), actor, p.now())
	if err != nil {
		return "", err
	}
	if err := p.attachments.Save(ctx, attachment); err != nil {
		return "", fmt.Errorf("failed to register %s: %w", artifact.Filename, err)
	}

	p.logger.Debug("Artifact published",
		zap.String("storage_key", key),
		zap.Int("size", len(artifact.Data)))
	return url, nil
}

// ArtifactPrefix places batch artifacts under their batch and each preview
// under its own folder, so previews rendered at the same instant never share a key
func ArtifactPrefix(batchID *uuid.UUID, previewID uuid.UUID) string {
	if batchID == nil {
		return "dispatch/previews/" + previewID.String() + "/"
	}
	return "dispatch/batches/" + batchID.String() + "/"
}
