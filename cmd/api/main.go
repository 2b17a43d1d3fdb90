package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/locaro/venue-api/internal/config"
	"github.com/locaro/venue-api/internal/email"
	"github.com/locaro/venue-api/internal/handler"
	broadcastHandler "github.com/locaro/venue-api/internal/handler/broadcast"
	venueHandler "github.com/locaro/venue-api/internal/handler/venue"
	webhookHandler "github.com/locaro/venue-api/internal/handler/webhook"
	"github.com/locaro/venue-api/internal/matcher"
	"github.com/locaro/venue-api/internal/middleware"
	"github.com/locaro/venue-api/internal/repository/postgres"
	"github.com/locaro/venue-api/internal/router"
	broadcastService "github.com/locaro/venue-api/internal/service/broadcast"
	deliveryService "github.com/locaro/venue-api/internal/service/delivery"
	listingService "github.com/locaro/venue-api/internal/service/listing"
	"github.com/locaro/venue-api/pkg/clock"
	"github.com/locaro/venue-api/pkg/logger"
	"github.com/locaro/venue-api/pkg/messaging"
	redisBroker "github.com/locaro/venue-api/pkg/messaging/redis"
	"github.com/locaro/venue-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
	})
	svcLogger := appLogger.Zerolog()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Redis backs the per-epoch page cache and the lifecycle broker; both
	// are optional.
	var rdb *redis.Client
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse redis url")
		}
		rdb = redis.NewClient(opts)

		brokerLogger := svcLogger
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{URL: cfg.Redis.URL}, &brokerLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis broker")
		}
		defer broker.Close()
	}

	base := postgres.NewBaseRepository(db)
	venueRepo := postgres.NewVenueRepository(base)
	broadcastRepo := postgres.NewBroadcastRepository(base)
	deliveryStore := postgres.NewDeliveryStore(base)
	emailLogRepo := postgres.NewEmailLogRepository(base)

	clk := clock.New()
	m := metrics.NewMetrics("venue_api", "core")
	venueMatcher := matcher.NewCapacityMatcher(venueRepo)
	sender := email.NewSender(cfg.Email)

	listingSvc := listingService.NewService(venueRepo, clk, listingService.Config{
		DefaultPageSize: cfg.Listing.DefaultPageSize,
		MaxPageSize:     cfg.Listing.MaxPageSize,
	}, svcLogger, m)
	broadcastSvc := broadcastService.NewService(
		broadcastRepo, venueRepo, emailLogRepo, venueMatcher, sender, broker,
		broadcastService.Config{CityName: cfg.Listing.CityName},
		svcLogger, m,
	)
	deliverySvc := deliveryService.NewService(deliveryStore, emailLogRepo, svcLogger, m)

	h := handler.NewHandler(db)
	venueH := venueHandler.NewHandler(listingSvc)
	broadcastH := broadcastHandler.NewHandler(broadcastSvc)
	webhookH := webhookHandler.NewHandler(deliverySvc, cfg.Email.WebhookSecret, clk, svcLogger, m)

	r := router.NewRouter(venueH, broadcastH, webhookH, h, rdb, clk, router.Config{
		RateLimit:  50,
		RateBurst:  100,
		CORSConfig: middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
