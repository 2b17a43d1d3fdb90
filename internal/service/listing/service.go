package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
	"github.com/locaro/venue-api/internal/rotation"
	"github.com/locaro/venue-api/pkg/clock"
	"github.com/locaro/venue-api/pkg/metrics"
)

// Bucket tokens accepted by the capacity filter. An unknown token means no
// capacity filter, never an error.
var capacityBuckets = map[string][2]int{
	"<30":     {0, 29},
	"30-59":   {30, 59},
	"60-119":  {60, 119},
	"120-239": {120, 239},
	"240-479": {240, 479},
	"480-959": {480, 959},
	"480+":    {480, -1},
}

type Service interface {
	// Page returns one window of the rotated listing order. Within one
	// rotation epoch the full ordering is fixed, so successive windows
	// never overlap or skip rows.
	Page(ctx context.Context, filter model.VenueFilter, capacityBucket string, pageSize, offset int) (*model.VenuePage, error)
}

type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

type service struct {
	repo    repository.VenueRepository
	clk     clock.Clock
	ordered *gocache.Cache
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.VenueRepository, clk clock.Clock, cfg Config, logger zerolog.Logger, m *metrics.Metrics) Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	return &service{
		repo:    repo,
		clk:     clk,
		ordered: gocache.New(rotation.EpochWidth, 2*rotation.EpochWidth),
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// ParseCapacityBucket resolves a bucket token into inclusive bounds; max is
// nil for the open-ended bracket. ok is false for unknown tokens.
func ParseCapacityBucket(token string) (min int, max *int, ok bool) {
	bounds, ok := capacityBuckets[strings.TrimSpace(token)]
	if !ok {
		return 0, nil, false
	}
	if bounds[1] < 0 {
		return bounds[0], nil, true
	}
	m := bounds[1]
	return bounds[0], &m, true
}

func (s *service) Page(ctx context.Context, filter model.VenueFilter, capacityBucket string, pageSize, offset int) (*model.VenuePage, error) {
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	if capacityBucket != "" {
		if min, max, ok := ParseCapacityBucket(capacityBucket); ok {
			filter.CapacityMin = &min
			filter.CapacityMax = max
		} else {
			s.logger.Debug().Str("bucket", capacityBucket).Msg("ignoring unknown capacity bucket")
		}
	}

	now := s.clk.Now()
	epoch := rotation.Epoch(now)

	venues, err := s.orderedForEpoch(ctx, &filter, epoch, now)
	if err != nil {
		return nil, err
	}

	total := len(venues)
	if offset > total {
		offset = total
	}
	end := offset + pageSize
	if end > total {
		end = total
	}

	if s.metrics != nil {
		s.metrics.ListingPages.Inc()
	}

	return &model.VenuePage{
		Items:   venues[offset:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// orderedForEpoch returns the full sorted order for (filter, epoch),
// memoized until the epoch rolls over so every page of a pagination
// sequence sees the same ordering without re-sorting.
func (s *service) orderedForEpoch(ctx context.Context, filter *model.VenueFilter, epoch int64, now time.Time) ([]*model.Venue, error) {
	key := cacheKey(filter, epoch)
	if cached, ok := s.ordered.Get(key); ok {
		if s.metrics != nil {
			s.metrics.ListingCacheHits.Inc()
		}
		return cached.([]*model.Venue), nil
	}

	venues, err := s.repo.ListFiltered(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load venue listing: %w", err)
	}
	rotation.Sort(venues, epoch)

	epochEnd := time.Unix((epoch+1)*int64(rotation.EpochWidth/time.Second), 0)
	s.ordered.Set(key, venues, epochEnd.Sub(now))
	return venues, nil
}

func cacheKey(filter *model.VenueFilter, epoch int64) string {
	min, max := -1, -1
	if filter.CapacityMin != nil {
		min = *filter.CapacityMin
	}
	if filter.CapacityMax != nil {
		max = *filter.CapacityMax
	}
	// Free-text fields are quoted so a separator inside one cannot collide
	// with a different filter's key.
	return fmt.Sprintf("%q|%q|%q|%d|%d|%d", filter.Query, filter.Category, filter.District, min, max, epoch)
}
