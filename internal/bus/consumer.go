package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tripdeck/concierge/internal/schema"
)

// EventHandler receives each decoded deal event. Handler errors are logged
// and the consumer moves on; the event stream is best-effort.
type EventHandler func(ctx context.Context, event schema.DealEvent) error

// Consumer reads deal events off the bus and applies them through a handler.
type Consumer struct {
	reader  *kafka.Reader
	handler EventHandler
}

// NewConsumer builds a group consumer with auto-commit. Returns nil when
// the bus is unreachable so the service can run cache-only.
func NewConsumer(ctx context.Context, brokers []string, topic, group string, handler EventHandler) *Consumer {
	if len(brokers) == 0 {
		return nil
	}

	if !probeBrokers(ctx, brokers) {
		log.Warn().Strs("brokers", brokers).Msg("bus unreachable, continuing without consumer")
		return nil
	}

	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        group,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
		handler: handler,
	}
}

// Run consumes until the context is cancelled. A message that fails to
// decode or apply is logged and skipped, never retried.
func (c *Consumer) Run(ctx context.Context) {
	if c == nil {
		return
	}

	log.Info().Str("topic", c.reader.Config().Topic).
		Str("group", c.reader.Config().GroupID).Msg("bus consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				log.Info().Msg("bus consumer stopped")
				return
			}
			log.Error().Err(err).Msg("bus read failed")
			continue
		}

		var event schema.DealEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping undecodable message")
			continue
		}

		if err := c.handler(ctx, event); err != nil {
			log.Warn().Err(err).Str("deal_id", event.DealID).Msg("deal event rejected")
		}
	}
}

// Close shuts down the reader and commits final offsets.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.reader.Close()
}
