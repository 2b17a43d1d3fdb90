package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
)

const venueColumns = `
	id, name, description, address, category, tags,
	capacity_seated, capacity_standing, contact_email, status,
	priority, homepage_slot, created_at, updated_at
`

type venueRepository struct {
	BaseRepository
}

func NewVenueRepository(base BaseRepository) repository.VenueRepository {
	return &venueRepository{base}
}

func (r *venueRepository) Get(ctx context.Context, id uuid.UUID) (*model.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`

	var venue model.Venue
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return &venue, nil
}

func (r *venueRepository) ListFiltered(ctx context.Context, filter *model.VenueFilter) ([]*model.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE status = 'active'`
	var args []interface{}

	if filter != nil {
		if filter.Query != "" {
			args = append(args, "%"+filter.Query+"%")
			n := len(args)
			query += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d OR address ILIKE $%d)", n, n, n)
		}

		if filter.Category != "" {
			args = append(args, filter.Category)
			n := len(args)
			query += fmt.Sprintf(" AND (category = $%d OR $%d = ANY(tags))", n, n)
		}

		if filter.District != "" {
			// District lives inside the free-form address field.
			args = append(args, "%"+filter.District+"%")
			query += fmt.Sprintf(" AND address ILIKE $%d", len(args))
		}

		if filter.CapacityMin != nil {
			// Either capacity figure may satisfy the bucket.
			args = append(args, *filter.CapacityMin)
			lo := len(args)
			if filter.CapacityMax != nil {
				args = append(args, *filter.CapacityMax)
				hi := len(args)
				query += fmt.Sprintf(
					" AND ((capacity_seated BETWEEN $%d AND $%d) OR (capacity_standing BETWEEN $%d AND $%d))",
					lo, hi, lo, hi,
				)
			} else {
				query += fmt.Sprintf(" AND (capacity_seated >= $%d OR capacity_standing >= $%d)", lo, lo)
			}
		}

		if filter.MinCapacity != nil {
			args = append(args, *filter.MinCapacity)
			n := len(args)
			query += fmt.Sprintf(" AND (capacity_seated >= $%d OR capacity_standing >= $%d)", n, n)
		}
	}

	var venues []*model.Venue
	if err := r.db.SelectContext(ctx, &venues, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	return venues, nil
}
