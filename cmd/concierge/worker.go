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

	"github.com/tripdeck/concierge/internal/bus"
	"github.com/tripdeck/concierge/internal/config"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/persistence/mongo"
	"github.com/tripdeck/concierge/internal/persistence/postgres"
	"github.com/tripdeck/concierge/internal/pipeline"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the deals pipeline worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runWorker(cmd.Context(), cfg)
	},
}

func runWorker(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	analytics, err := mongo.Connect(ctx, cfg.AnalyticsURL, "deals", cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to analytics store: %w", err)
	}

	var inventory persistence.InventoryRepo
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("operational inventory unavailable, mining datasets only")
	} else {
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		inventory = postgres.NewInventoryRepo(db, cfg.RequestTimeout)
	}

	var producer *bus.Producer
	if cfg.BusEnabled() {
		producer = bus.NewProducer(ctx, cfg.KafkaBrokers, cfg.DealTopic)
		defer producer.Close()
	} else {
		log.Warn().Msg("no brokers configured, deals will persist without emission")
	}

	worker := pipeline.NewWorker(inventory, analytics, eventProducer(producer), cfg.DataDir, cfg.PipelineInterval)

	if cfg.BusEnabled() {
		raw := bus.NewConsumer(ctx, cfg.KafkaBrokers, cfg.RawDealTopic, cfg.ConsumerGroup+"-raw", worker.HandleRawEvent)
		go raw.Run(ctx)
		defer raw.Close()
	}

	worker.Run(ctx)
	return nil
}

// eventProducer keeps a nil *bus.Producer from becoming a non-nil
// interface inside the worker.
func eventProducer(p *bus.Producer) pipeline.EventProducer {
	if p == nil {
		return nil
	}
	return p
}
