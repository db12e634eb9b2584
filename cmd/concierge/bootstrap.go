package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tripdeck/concierge/internal/bus"
)

var bootstrapTopicsCmd = &cobra.Command{
	Use:   "bootstrap-topics",
	Short: "Create the bus topics from the topics manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.BusEnabled() {
			return errors.New("CONCIERGE_KAFKA_BROKERS is not set")
		}

		specs, err := bus.LoadTopicsManifest(cfg.TopicsManifest)
		if err != nil {
			return err
		}

		if err := bus.BootstrapTopics(cmd.Context(), cfg.KafkaBrokers, specs); err != nil {
			return err
		}
		log.Info().Int("topics", len(specs)).Msg("topic bootstrap complete")
		return nil
	},
}
