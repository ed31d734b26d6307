package sourcing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatchBatch(t *testing.T) {
	supplierID, customerID, actor := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	a := *newOpenInquiry(supplierID, customerID)
	a.Site, a.PRNumber = "North", "PR-1"
	b := *newOpenInquiry(supplierID, customerID)
	b.Site, b.PRNumber = "North", "PR-2"

	t.Run("numbers lines in input order", func(t *testing.T) {
		batch, err := NewDispatchBatch(DirectionToSupplier, supplierID, []Inquiry{a, b}, "urgent", actor, now)
		require.NoError(t, err)

		require.Len(t, batch.Lines, 2)
		assert.Equal(t, 1, batch.Lines[0].LineNo)
		assert.Equal(t, a.ID, batch.Lines[0].InquiryID)
		assert.Equal(t, 2, batch.Lines[1].LineNo)
		assert.Equal(t, batch.ID, batch.Lines[1].BatchID)
		assert.Equal(t, []uuid.UUID{a.ID, b.ID}, batch.InquiryIDs())
		assert.Equal(t, "North", batch.Site)
		assert.Empty(t, batch.PRNumber)
		assert.Equal(t, actor, batch.CreatedBy)
		assert.Equal(t, now, batch.CreatedAt)
	})

	t.Run("rejects empty and duplicate lines", func(t *testing.T) {
		_, err := NewDispatchBatch(DirectionToSupplier, supplierID, nil, "", actor, now)
		assert.ErrorIs(t, err, ErrNoEligibleItems)

		_, err = NewDispatchBatch(DirectionToSupplier, supplierID, []Inquiry{a, a}, "", actor, now)
		assert.Error(t, err)
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		_, err := NewDispatchBatch(Direction("X"), supplierID, []Inquiry{a}, "", actor, now)
		assert.Error(t, err)
	})

	t.Run("record resend stamps time", func(t *testing.T) {
		batch, err := NewDispatchBatch(DirectionToSupplier, supplierID, []Inquiry{a}, "", actor, now)
		require.NoError(t, err)
		later := now.Add(time.Hour)
		batch.RecordResend(actor, later)
		assert.Equal(t, later, *batch.LastResendAt)
		assert.Equal(t, later, batch.UpdatedAt)
	})
}

func TestNewAttachment(t *testing.T) {
	actor := uuid.New()
	att, err := NewAttachment(nil, AttachmentLetter, "ToSupplier-Acme-1.pdf", "dispatch/preview/x.pdf",
		"http://files/x.pdf", "application/pdf", 10, actor, time.Now())
	require.NoError(t, err)
	assert.True(t, att.IsPreview())

	_, err = NewAttachment(nil, AttachmentKind("ZIP"), "a", "b", "", "", 0, actor, time.Now())
	assert.Error(t, err)
	_, err = NewAttachment(nil, AttachmentLetter, " ", "b", "", "", 0, actor, time.Now())
	assert.Error(t, err)
}
