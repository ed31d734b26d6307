package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleDocuments() *Documents {
	return &Documents{
		Spreadsheet: Artifact{
			Kind:        sourcing.AttachmentSpreadsheet,
			Filename:    "ToSupplier-Acme-1775439000000.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        []byte("xlsx"),
		},
		Letter: Artifact{
			Kind:        sourcing.AttachmentLetter,
			Filename:    "ToSupplier-Acme-1775439000000.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF"),
		},
	}
}

func TestArtifactPublisher_PreviewsNeverShareKeys(t *testing.T) {
	f := newFixture()
	publisher := NewArtifactPublisher(f.storage, f.store, zaptest.NewLogger(t))
	now := f.base
	publisher.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := publisher.Publish(ctx, sampleDocuments(), nil, uuid.Nil)
	require.NoError(t, err)
	second, err := publisher.Publish(ctx, sampleDocuments(), nil, uuid.Nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.PDFURL, second.PDFURL)
	assert.NotEqual(t, first.SpreadsheetURL, second.SpreadsheetURL)
	assert.Len(t, f.storage.keysWithPrefix("dispatch/previews/"), 4)

	previews := f.store.previewAttachments()
	require.Len(t, previews, 4)
	keys := make(map[string]bool)
	for _, a := range previews {
		keys[a.StorageKey] = true
	}
	assert.Len(t, keys, 4)
}

func TestArtifactPublisher_BatchArtifactsShareBatchFolder(t *testing.T) {
	f := newFixture()
	publisher := NewArtifactPublisher(f.storage, f.store, zaptest.NewLogger(t))
	batchID := uuid.New()

	links, err := publisher.Publish(context.Background(), sampleDocuments(), &batchID, uuid.Nil)
	require.NoError(t, err)

	keys := f.storage.keysWithPrefix("dispatch/batches/" + batchID.String() + "/")
	assert.Len(t, keys, 2)
	assert.True(t, strings.HasSuffix(links.PDFURL, ".pdf"))

	attachments, err := f.store.FindByBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Len(t, attachments, 2)
}

func TestArtifactPrefix(t *testing.T) {
	batchID := uuid.MustParse("7c1a2c1e-4b1f-4a59-9f1e-0d7f3e7b8a10")
	previewID := uuid.MustParse("0b6f3d44-8e1d-4a7d-b1c5-6d4e2f1a9c33")

	assert.Equal(t, "dispatch/batches/7c1a2c1e-4b1f-4a59-9f1e-0d7f3e7b8a10/", ArtifactPrefix(&batchID, previewID))
	assert.Equal(t, "dispatch/previews/0b6f3d44-8e1d-4a7d-b1c5-6d4e2f1a9c33/", ArtifactPrefix(nil, previewID))
}
