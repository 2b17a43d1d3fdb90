package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Webhook reconciliation metrics
	WebhookEvents    *prometheus.CounterVec
	WebhookUnmatched prometheus.Counter
	WebhookRejected  *prometheus.CounterVec

	// Broadcast fan-out metrics
	BroadcastsCreated prometheus.Counter
	BroadcastFanout   prometheus.Histogram
	BackfillAdded     prometheus.Counter

	// Outbound email metrics
	EmailSends *prometheus.CounterVec

	// Listing metrics
	ListingPages     prometheus.Counter
	ListingCacheHits prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_events_total",
			Help:      "Delivery provider webhook events, by kind and outcome",
		}, []string{"kind", "outcome"}),
		WebhookUnmatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_events_unmatched_total",
			Help:      "Webhook events whose message id matched no stored row",
		}),
		WebhookRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_events_rejected_total",
			Help:      "Webhook events rejected before processing, by reason",
		}, []string{"reason"}),
		BroadcastsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broadcasts_created_total",
			Help:      "Total number of broadcasts created",
		}),
		BroadcastFanout: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broadcast_fanout_size",
			Help:      "Number of recipients per broadcast",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		}),
		BackfillAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backfill_recipients_added_total",
			Help:      "Recipient rows added by backfill runs",
		}),
		EmailSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "email_sends_total",
			Help:      "Outbound email sends, by transport and outcome",
		}, []string{"transport", "outcome"}),
		ListingPages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "listing_pages_total",
			Help:      "Venue listing pages served",
		}),
		ListingCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "listing_cache_hits_total",
			Help:      "Venue listing pages served from the per-epoch cache",
		}),
	}
}
