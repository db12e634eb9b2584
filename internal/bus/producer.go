// Package bus wraps the Kafka producer, consumer, and topic bootstrap used
// for deal event flow.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tripdeck/concierge/internal/metrics"
	"github.com/tripdeck/concierge/internal/schema"
)

const (
	connectAttempts = 5
	connectBackoff  = 5 * time.Second
)

// Producer publishes deal events to the bus.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer probes the brokers with startup retries (5 attempts,
// exponential) and returns a producer, or nil when the bus stays
// unreachable, in which case the worker runs without event emission.
func NewProducer(ctx context.Context, brokers []string, topic string) *Producer {
	if len(brokers) == 0 {
		return nil
	}

	if !probeBrokers(ctx, brokers) {
		log.Warn().Strs("brokers", brokers).Msg("bus unreachable, continuing without producer")
		return nil
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:        kafka.TCP(brokers...),
			Topic:       topic,
			Balancer:    &kafka.LeastBytes{},
			Compression: kafka.Snappy,
		},
	}
}

// Publish sends one deal event keyed by deal_id.
func (p *Producer) Publish(ctx context.Context, event schema.DealEvent) error {
	if p == nil {
		return fmt.Errorf("producer not available")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal deal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DealID),
		Value: value,
	})
	if err != nil {
		metrics.DealEventPublishFailures.Inc()
		return fmt.Errorf("failed to publish deal event %s: %w", event.DealID, err)
	}

	metrics.DealEventsPublished.Inc()
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// probeBrokers dials the first reachable broker with exponential startup
// backoff so a service booting alongside the bus does not flap.
func probeBrokers(ctx context.Context, brokers []string) bool {
	backoff := connectBackoff
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		for _, broker := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err == nil {
				conn.Close()
				return true
			}
		}
		if attempt < connectAttempts {
			log.Warn().Int("attempt", attempt).Dur("backoff", backoff).
				Msg("bus connection failed, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return false
			}
			backoff *= 2
		}
	}
	return false
}
