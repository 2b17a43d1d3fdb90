// Package delivery reconciles asynchronous provider callbacks against the
// per-recipient tracking rows and the system-wide email ledger. The two
// stores are keyed independently by provider message id; an event is applied
// to whichever rows exist, duplicates and unmatched ids are benign.
package delivery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
	apperrors "github.com/locaro/venue-api/pkg/errors"
	"github.com/locaro/venue-api/pkg/metrics"
)

type Service interface {
	// Reconcile applies one provider event. It is idempotent for
	// first-timestamp fields; counters increment on every received event
	// because the engine cannot tell provider duplicates from genuine
	// repeats. An unmatched message id is success, not an error.
	Reconcile(ctx context.Context, event *Event) error
}

type service struct {
	logs    repository.DeliveryStore
	ledger  repository.EmailLogRepository
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(logs repository.DeliveryStore, ledger repository.EmailLogRepository, logger zerolog.Logger, m *metrics.Metrics) Service {
	return &service{
		logs:    logs,
		ledger:  ledger,
		logger:  logger,
		metrics: m,
	}
}

// transition describes how one event kind mutates the two stores: a
// fine-grained update for the recipient row and a coarse status for the
// ledger. Both key on provider message id and report rows matched.
type transition struct {
	apply  func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error)
	status model.EmailStatus
	errMsg *string
}

func str(s string) *string { return &s }

func transitionFor(ev *Event) (transition, bool) {
	switch ev.Kind {
	case KindSent:
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.MarkSent(ctx, ev.MessageID, ev.OccurredAt)
			},
			status: model.EmailStatusSent,
		}, true
	case KindDelivered:
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.MarkDelivered(ctx, ev.MessageID, ev.OccurredAt)
			},
			status: model.EmailStatusDelivered,
		}, true
	case KindOpened:
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.RecordOpen(ctx, ev.MessageID, ev.OccurredAt)
			},
			status: model.EmailStatusOpened,
		}, true
	case KindClicked:
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.RecordClick(ctx, ev.MessageID, ev.OccurredAt)
			},
			status: model.EmailStatusClicked,
		}, true
	case KindBounced:
		reason := "bounced"
		if ev.BounceType != "" {
			reason = "bounced: " + ev.BounceType
		}
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.MarkBounced(ctx, ev.MessageID, ev.OccurredAt, ev.BounceType, reason)
			},
			status: model.EmailStatusBounced,
			errMsg: str(reason),
		}, true
	case KindComplained:
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.MarkComplained(ctx, ev.MessageID, ev.OccurredAt, "marked as spam")
			},
			status: model.EmailStatusComplained,
			errMsg: str("marked as spam"),
		}, true
	case KindDelayed:
		return transition{
			apply: func(ctx context.Context, s repository.DeliveryStore, ev *Event) (int64, error) {
				return s.MarkDelayed(ctx, ev.MessageID, ev.OccurredAt, "delivery delayed")
			},
			status: model.EmailStatusDelayed,
			errMsg: str("delivery delayed"),
		}, true
	default:
		return transition{}, false
	}
}

func (s *service) Reconcile(ctx context.Context, ev *Event) error {
	tr, ok := transitionFor(ev)
	if !ok {
		s.logger.Info().Str("type", ev.RawType).Str("message_id", ev.MessageID).Msg("ignoring unhandled webhook event type")
		// Kind is empty for unhandled types; the raw type keeps the
		// metric label meaningful.
		s.count(ev.RawType, "ignored")
		return nil
	}

	matchedLogs, err := tr.apply(ctx, s.logs, ev)
	if err != nil {
		s.count(string(ev.Kind), "error")
		return apperrors.Internal(fmt.Errorf("failed to update broadcast log: %w", err))
	}

	matchedLedger, err := s.ledger.UpdateStatusByMessageID(ctx, ev.MessageID, tr.status, tr.errMsg)
	if err != nil {
		s.count(string(ev.Kind), "error")
		return apperrors.Internal(fmt.Errorf("failed to update email log: %w", err))
	}

	if matchedLogs == 0 && matchedLedger == 0 {
		// Late, duplicate, or foreign event. Acknowledge so the provider
		// does not retry-storm.
		s.logger.Warn().
			Str("type", ev.RawType).
			Str("message_id", ev.MessageID).
			Msg("webhook event matched no stored row")
		if s.metrics != nil {
			s.metrics.WebhookUnmatched.Inc()
		}
		s.count(string(ev.Kind), "unmatched")
		return nil
	}

	s.logger.Debug().
		Str("type", ev.RawType).
		Str("message_id", ev.MessageID).
		Int64("broadcast_logs", matchedLogs).
		Int64("email_logs", matchedLedger).
		Msg("webhook event applied")
	s.count(string(ev.Kind), "applied")
	return nil
}

func (s *service) count(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(kind, outcome).Inc()
	}
}
