// Command backfill re-runs the candidate matcher against every broadcast
// and additively repairs missing recipient rows. It is idempotent and safe
// to schedule periodically; it runs once and exits.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/locaro/venue-api/internal/matcher"
	"github.com/locaro/venue-api/internal/repository/postgres"
	broadcastService "github.com/locaro/venue-api/internal/service/broadcast"
)

type config struct {
	DatabaseHost     string `envconfig:"DB_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DB_PORT" default:"5432"`
	DatabaseUser     string `envconfig:"DB_USER" required:"true"`
	DatabasePassword string `envconfig:"DB_PASSWORD" required:"true"`
	DatabaseName     string `envconfig:"DB_NAME" required:"true"`
	DatabaseSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	TimeoutSeconds   int    `envconfig:"TIMEOUT_SECONDS" default:"120"`
}

func main() {
	var cfg config
	if err := envconfig.Process("backfill", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUser,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	venueRepo := postgres.NewVenueRepository(base)
	broadcastRepo := postgres.NewBroadcastRepository(base)
	emailLogRepo := postgres.NewEmailLogRepository(base)
	venueMatcher := matcher.NewCapacityMatcher(venueRepo)

	// Backfill never sends mail or publishes events, so no sender/broker.
	svc := broadcastService.NewService(
		broadcastRepo, venueRepo, emailLogRepo, venueMatcher,
		nil, nil, broadcastService.Config{}, log.Logger, nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	deltas, err := svc.Backfill(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill failed")
	}

	total := 0
	for _, d := range deltas {
		total += d.Added
		log.Info().
			Str("broadcast_id", d.BroadcastID.String()).
			Str("title", d.Title).
			Int("added", d.Added).
			Msg("repaired broadcast")
	}
	log.Info().Int("broadcasts", len(deltas)).Int("recipients_added", total).Msg("backfill complete")
}
