package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/locaro/venue-api/internal/email"
	"github.com/locaro/venue-api/internal/matcher"
	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
	apperrors "github.com/locaro/venue-api/pkg/errors"
	"github.com/locaro/venue-api/pkg/messaging"
	"github.com/locaro/venue-api/pkg/metrics"
)

type Service interface {
	// Dispatch turns one inbound venue request into a broadcast plus one
	// tracking row per matched venue, then sends the notifications. Zero
	// candidates still creates the broadcast.
	Dispatch(ctx context.Context, criteria *model.BroadcastCriteria) (*model.Broadcast, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Broadcast, []*model.BroadcastLog, error)
	// Backfill re-runs the matcher for every broadcast and additively
	// repairs missing recipient rows. Safe to run repeatedly.
	Backfill(ctx context.Context) ([]model.BroadcastDelta, error)
}

type Config struct {
	CityName string
}

type service struct {
	repo      repository.BroadcastRepository
	venues    repository.VenueRepository
	emailLogs repository.EmailLogRepository
	matcher   matcher.Matcher
	sender    email.Sender
	broker    messaging.Broker
	cfg       Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewService(
	repo repository.BroadcastRepository,
	venues repository.VenueRepository,
	emailLogs repository.EmailLogRepository,
	m matcher.Matcher,
	sender email.Sender,
	broker messaging.Broker,
	cfg Config,
	logger zerolog.Logger,
	mt *metrics.Metrics,
) Service {
	return &service{
		repo:      repo,
		venues:    venues,
		emailLogs: emailLogs,
		matcher:   m,
		sender:    sender,
		broker:    broker,
		cfg:       cfg,
		logger:    logger,
		metrics:   mt,
	}
}

func (s *service) Dispatch(ctx context.Context, criteria *model.BroadcastCriteria) (*model.Broadcast, error) {
	if err := validateCriteria(criteria); err != nil {
		return nil, apperrors.BadRequest("invalid broadcast criteria", err)
	}

	candidates, err := s.matcher.Match(ctx, matcher.Criteria{
		GuestCount: criteria.GuestCount,
		Location:   criteria.Location,
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to match candidates: %w", err))
	}
	candidates = dedupe(candidates)

	b := &model.Broadcast{
		Title:        buildTitle(criteria.GuestCount, criteria.Location, s.cfg.CityName),
		GuestCount:   criteria.GuestCount,
		Location:     criteria.Location,
		Description:  criteria.Description,
		Requirements: criteria.Requirements,
		ContactName:  criteria.ContactName,
		ContactEmail: criteria.ContactEmail,
		ContactPhone: criteria.ContactPhone,
		Status:       model.BroadcastStatusPending,
		SentCount:    0,
	}
	for _, c := range candidates {
		b.VenueIDs = append(b.VenueIDs, c.ID.String())
	}

	logs := make([]*model.BroadcastLog, 0, len(candidates))
	for _, c := range candidates {
		logs = append(logs, &model.BroadcastLog{
			VenueID:     c.ID,
			EmailStatus: model.EmailStatusPending,
		})
	}

	// Broadcast and recipient rows become visible together or not at all.
	if err := s.repo.CreateWithLogs(ctx, b, logs); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create broadcast: %w", err))
	}

	if len(candidates) == 0 {
		s.logger.Warn().
			Str("broadcast_id", b.ID.String()).
			Str("title", b.Title).
			Msg("no candidates matched broadcast criteria")
	}

	if s.metrics != nil {
		s.metrics.BroadcastsCreated.Inc()
		s.metrics.BroadcastFanout.Observe(float64(len(logs)))
	}

	s.sendAll(ctx, b, logs)

	if s.broker != nil {
		if err := s.broker.Publish(ctx, messaging.ChannelBroadcastCreated, messaging.Message{
			Type: messaging.ChannelBroadcastCreated,
			Payload: map[string]interface{}{
				"broadcast_id": b.ID,
				"title":        b.Title,
				"recipients":   len(logs),
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish broadcast.created")
		}
	}

	return b, nil
}

// sendAll is the send step: each recipient row gets its provider message id
// exactly once and moves pending→sent; a failed send marks that row failed
// and the loop continues.
func (s *service) sendAll(ctx context.Context, b *model.Broadcast, logs []*model.BroadcastLog) {
	for _, l := range logs {
		venue, err := s.venues.Get(ctx, l.VenueID)
		if err != nil {
			s.failLog(ctx, l, fmt.Errorf("failed to load venue: %w", err))
			continue
		}

		msg := &email.Message{
			To:      venue.ContactEmail,
			Subject: b.Title,
			Text:    requestBody(b),
			Type:    model.EmailTypeBroadcast,
		}

		messageID, err := s.sender.Send(ctx, msg)
		if err != nil {
			s.failLog(ctx, l, err)
			s.recordEmail(ctx, venue.ContactEmail, model.EmailStatusFailed, nil, err)
			if s.metrics != nil {
				s.metrics.EmailSends.WithLabelValues(s.sender.Transport(), "error").Inc()
			}
			continue
		}

		now := time.Now()
		if err := s.repo.MarkLogSent(ctx, l.ID, messageID, now); err != nil {
			s.logger.Error().Err(err).Str("log_id", l.ID.String()).Msg("failed to mark recipient sent")
			continue
		}
		if err := s.repo.IncrementSentCount(ctx, b.ID); err != nil {
			s.logger.Error().Err(err).Str("broadcast_id", b.ID.String()).Msg("failed to increment sent count")
		}
		s.recordEmail(ctx, venue.ContactEmail, model.EmailStatusSent, &messageID, nil)
		if s.metrics != nil {
			s.metrics.EmailSends.WithLabelValues(s.sender.Transport(), "success").Inc()
		}
	}
}

func (s *service) failLog(ctx context.Context, l *model.BroadcastLog, sendErr error) {
	s.logger.Error().Err(sendErr).Str("log_id", l.ID.String()).Msg("failed to send broadcast email")
	if err := s.repo.MarkLogFailed(ctx, l.ID, sendErr.Error()); err != nil {
		s.logger.Error().Err(err).Str("log_id", l.ID.String()).Msg("failed to mark recipient failed")
	}
}

// recordEmail appends to the system-wide outbound ledger.
func (s *service) recordEmail(ctx context.Context, recipient string, status model.EmailStatus, messageID *string, sendErr error) {
	log := &model.EmailLog{
		EmailType:         model.EmailTypeBroadcast,
		Recipient:         recipient,
		Status:            status,
		ProviderMessageID: messageID,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		log.Error = &msg
	}
	if err := s.emailLogs.Create(ctx, log); err != nil {
		s.logger.Error().Err(err).Str("recipient", recipient).Msg("failed to write email log")
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Broadcast, []*model.BroadcastLog, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, apperrors.NotFound("broadcast", err)
	}
	logs, err := s.repo.ListLogs(ctx, id)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	return b, logs, nil
}

func (s *service) Backfill(ctx context.Context) ([]model.BroadcastDelta, error) {
	broadcasts, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list broadcasts: %w", err))
	}

	deltas := make([]model.BroadcastDelta, 0)
	for _, b := range broadcasts {
		criteria := b.Criteria()
		candidates, err := s.matcher.Match(ctx, matcher.Criteria{
			GuestCount: criteria.GuestCount,
			Location:   criteria.Location,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("broadcast_id", b.ID.String()).Msg("backfill: matcher failed, skipping broadcast")
			continue
		}

		existing, err := s.repo.ListLogs(ctx, b.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("broadcast_id", b.ID.String()).Msg("backfill: failed to list logs, skipping broadcast")
			continue
		}
		seen := make(map[uuid.UUID]bool, len(existing))
		for _, l := range existing {
			seen[l.VenueID] = true
		}

		var logs []*model.BroadcastLog
		for _, c := range dedupe(candidates) {
			if seen[c.ID] {
				continue
			}
			logs = append(logs, &model.BroadcastLog{
				BroadcastID: b.ID,
				VenueID:     c.ID,
				EmailStatus: model.EmailStatusPending,
			})
		}
		if len(logs) == 0 {
			continue
		}

		added, err := s.repo.InsertLogs(ctx, logs)
		if err != nil {
			s.logger.Error().Err(err).Str("broadcast_id", b.ID.String()).Msg("backfill: failed to insert logs")
			continue
		}
		if len(added) == 0 {
			// A concurrent dispatch or backfill got there first.
			continue
		}
		// Only ids whose rows this run created go into the denormalized
		// array, so a raced insert cannot duplicate an entry.
		if err := s.repo.AppendVenueIDs(ctx, b.ID, added); err != nil {
			s.logger.Error().Err(err).Str("broadcast_id", b.ID.String()).Msg("backfill: failed to append venue ids")
		}

		s.logger.Info().
			Str("broadcast_id", b.ID.String()).
			Int("added", len(added)).
			Msg("backfill repaired broadcast")
		if s.metrics != nil {
			s.metrics.BackfillAdded.Add(float64(len(added)))
		}

		deltas = append(deltas, model.BroadcastDelta{
			BroadcastID: b.ID,
			Title:       b.Title,
			Added:       len(added),
			VenueIDs:    added,
		})
	}

	if s.broker != nil && len(deltas) > 0 {
		if err := s.broker.Publish(ctx, messaging.ChannelBackfillApplied, messaging.Message{
			Type:    messaging.ChannelBackfillApplied,
			Payload: deltas,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish backfill result")
		}
	}

	return deltas, nil
}

func validateCriteria(c *model.BroadcastCriteria) error {
	if c == nil {
		return fmt.Errorf("criteria is required")
	}
	if strings.TrimSpace(c.ContactEmail) == "" {
		return fmt.Errorf("contact email is required")
	}
	if !strings.Contains(c.ContactEmail, "@") {
		return fmt.Errorf("contact email is invalid")
	}
	if c.GuestCount != nil && *c.GuestCount < 0 {
		return fmt.Errorf("guest count must not be negative")
	}
	return nil
}

func dedupe(candidates []model.VenueRef) []model.VenueRef {
	seen := make(map[uuid.UUID]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func requestBody(b *model.Broadcast) string {
	var sb strings.Builder
	sb.WriteString("A new venue request matches your venue.\n\n")
	sb.WriteString("Request: " + b.Title + "\n")
	if b.Description != "" {
		sb.WriteString("Description: " + b.Description + "\n")
	}
	if b.Requirements != "" {
		sb.WriteString("Requirements: " + b.Requirements + "\n")
	}
	sb.WriteString("Contact: " + b.ContactName + " <" + b.ContactEmail + ">")
	if b.ContactPhone != "" {
		sb.WriteString(", " + b.ContactPhone)
	}
	sb.WriteString("\n")
	return sb.String()
}
