package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tripdeck/concierge/internal/bundle"
	"github.com/tripdeck/concierge/internal/bus"
	"github.com/tripdeck/concierge/internal/config"
	"github.com/tripdeck/concierge/internal/dealcache"
	"github.com/tripdeck/concierge/internal/hotcache"
	"github.com/tripdeck/concierge/internal/httpapi"
	"github.com/tripdeck/concierge/internal/intent"
	"github.com/tripdeck/concierge/internal/persistence/postgres"
	"github.com/tripdeck/concierge/internal/registry"
	"github.com/tripdeck/concierge/internal/upstream"
	"github.com/tripdeck/concierge/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the concierge HTTP and WebSocket service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	hot := hotcache.Connect(ctx, cfg.RedisURL)

	cache := dealcache.New(
		postgres.NewDealsRepo(db, cfg.RequestTimeout),
		postgres.NewBundlesRepo(db, cfg.RequestTimeout),
		postgres.NewWatchRepo(db, cfg.RequestTimeout),
		hot,
	)

	searcher := upstream.NewClient(upstream.Options{
		FlightsURL:     cfg.FlightsServiceURL,
		HotelsURL:      cfg.HotelsServiceURL,
		CarsURL:        cfg.CarsServiceURL,
		RequestTimeout: cfg.RequestTimeout,
	})

	engine := bundle.NewEngine(searcher, cache, hot, cfg.BundleLimit)
	reg := registry.New()
	extractor := intent.NewExtractor(cfg.IntentExtractorURL, cfg.IntentExtractorModel, 30*time.Second)

	evaluator := watch.NewEvaluator(cache, reg, cfg.WatchPollInterval)
	go evaluator.Run(ctx)

	var consumer *bus.Consumer
	if cfg.BusEnabled() {
		consumer = bus.NewConsumer(ctx, cfg.KafkaBrokers, cfg.DealTopic, cfg.ConsumerGroup, cache.UpsertDealEvent)
		go consumer.Run(ctx)
		defer consumer.Close()
	} else {
		log.Warn().Msg("no brokers configured, running without deal event ingress")
	}

	server := httpapi.NewServer(httpapi.Options{
		ServiceName:    cfg.ServiceName,
		Version:        cfg.Version,
		Addr:           fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		RequestTimeout: cfg.RequestTimeout,
		Engine:         engine,
		Cache:          cache,
		Extractor:      extractor,
		Registry:       reg,
		Prefs:          postgres.NewPreferenceRepo(db, cfg.RequestTimeout),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
