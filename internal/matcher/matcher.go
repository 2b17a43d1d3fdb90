// Package matcher maps broadcast criteria to the set of venues worth
// notifying. The fan-out and backfill paths treat it as a read-only,
// idempotent collaborator.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
)

// Anywhere is the city-wide location sentinel: no district restriction.
const Anywhere = "anywhere"

type Criteria struct {
	GuestCount *int
	Location   *string
}

type Matcher interface {
	Match(ctx context.Context, criteria Criteria) ([]model.VenueRef, error)
}

type capacityMatcher struct {
	venues repository.VenueRepository
}

// NewCapacityMatcher matches active venues whose seated or standing
// capacity covers the guest count and, when a district preference is given,
// whose address contains the district.
func NewCapacityMatcher(venues repository.VenueRepository) Matcher {
	return &capacityMatcher{venues: venues}
}

func (m *capacityMatcher) Match(ctx context.Context, criteria Criteria) ([]model.VenueRef, error) {
	filter := &model.VenueFilter{
		MinCapacity: criteria.GuestCount,
	}
	if criteria.Location != nil {
		if loc := strings.TrimSpace(*criteria.Location); loc != "" && !strings.EqualFold(loc, Anywhere) {
			filter.District = loc
		}
	}

	venues, err := m.venues.ListFiltered(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to match venues: %w", err)
	}

	refs := make([]model.VenueRef, 0, len(venues))
	for _, v := range venues {
		refs = append(refs, model.VenueRef{ID: v.ID, Name: v.Name})
	}
	return refs, nil
}
