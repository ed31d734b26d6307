package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/google/uuid"
)

// EligibilitySelector finds the inquiries that can be dispatched right now.
// Every call reads the store; nothing is cached between requests.
type EligibilitySelector struct {
	inquiries      sourcing.InquiryRepository
	counterparties sourcing.CounterpartyRepository
}

// NewEligibilitySelector creates a new EligibilitySelector
func NewEligibilitySelector(inquiries sourcing.InquiryRepository, counterparties sourcing.CounterpartyRepository) *EligibilitySelector {
	return &EligibilitySelector{inquiries: inquiries, counterparties: counterparties}
}

// Eligible returns every inquiry that can be sent to the counterparty in direction,
// oldest first.
func (s *EligibilitySelector) Eligible(ctx context.Context, direction sourcing.Direction, counterpartyID uuid.UUID) ([]sourcing.Inquiry, error) {
	inquiries, err := s.inquiries.FindEligible(ctx, sourcing.EligibilityQuery{
		Direction:      direction,
		CounterpartyID: counterpartyID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find eligible inquiries: %w", err)
	}
	return inquiries, nil
}

// Select narrows the eligible set to ids. Requested inquiries that are no
// longer eligible are dropped without error; an empty result is valid.
func (s *EligibilitySelector) Select(ctx context.Context, direction sourcing.Direction, counterpartyID uuid.UUID, ids []uuid.UUID) ([]sourcing.Inquiry, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	inquiries, err := s.inquiries.FindEligible(ctx, sourcing.EligibilityQuery{
		Direction:      direction,
		CounterpartyID: counterpartyID,
		InquiryIDs:     ids,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select inquiries: %w", err)
	}
	return inquiries, nil
}

// Worklist lists counterparties with at least one eligible inquiry, by name
func (s *EligibilitySelector) Worklist(ctx context.Context, direction sourcing.Direction) ([]sourcing.CounterpartyCount, error) {
	counts, err := s.inquiries.CountEligibleByCounterparty(ctx, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to count eligible inquiries: %w", err)
	}
	if len(counts) == 0 {
		return counts, nil
	}

	ids := make([]uuid.UUID, len(counts))
	for i, c := range counts {
		ids[i] = c.CounterpartyID
	}
	names, err := s.counterparties.FindNames(ctx, direction, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load counterparty names: %w", err)
	}
	for i := range counts {
		counts[i].Name = names[counts[i].CounterpartyID]
	}

	sort.SliceStable(counts, func(i, j int) bool {
		a, b := strings.ToLower(counts[i].Name), strings.ToLower(counts[j].Name)
		if a != b {
			return a < b
		}
		return counts[i].CounterpartyID.String() < counts[j].CounterpartyID.String()
	})
	return counts, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
