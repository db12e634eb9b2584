// Package pipeline implements the deals worker: mine candidate deals from
// CSV datasets and operational inventory, normalize, score, tag, persist to
// the analytics store, and emit the top deals on the bus.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/metrics"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

const (
	emitLimit = 10

	sourceCSV = "csv"
	sourceDB  = "db"
	sourceRaw = "raw"
)

// Candidate is a raw mined deal before normalization.
type Candidate struct {
	ReferenceID   string
	Type          schema.ComponentType
	Destination   string
	Route         string
	Summary       string
	OriginalPrice float64
	DealPrice     float64
	Currency      string
	DepartureTime *time.Time
	Inventory     *int
	Changeable    bool
	Source        string
	Metadata      map[string]any
}

// EventProducer publishes deal events. The worker tolerates a nil producer
// and per-event publish failures.
type EventProducer interface {
	Publish(ctx context.Context, event schema.DealEvent) error
}

// Worker runs the five-stage deals pipeline on a fixed interval.
type Worker struct {
	inventory persistence.InventoryRepo
	analytics persistence.AnalyticsStore
	producer  EventProducer
	dataDir   string
	interval  time.Duration
	rng       *rand.Rand
	now       func() time.Time
}

// NewWorker builds the pipeline worker.
func NewWorker(inventory persistence.InventoryRepo, analytics persistence.AnalyticsStore, producer EventProducer, dataDir string, interval time.Duration) *Worker {
	return &Worker{
		inventory: inventory,
		analytics: analytics,
		producer:  producer,
		dataDir:   dataDir,
		interval:  interval,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// WithClock overrides the clock and randomness source, used by tests.
func (w *Worker) WithClock(now func() time.Time, rng *rand.Rand) *Worker {
	w.now = now
	w.rng = rng
	return w
}

// Run loops until the context is cancelled, with one immediate pass at
// startup. A failed pass is logged and the next tick runs normally.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("deals pipeline started")

	if err := w.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("pipeline pass failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("deals pipeline stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("pipeline pass failed")
			}
		}
	}
}

// RunOnce executes one full pipeline pass: collect, normalize, score, tag,
// persist, emit. A deal that fails to persist is logged and skipped; the
// rest of the batch continues.
func (w *Worker) RunOnce(ctx context.Context) error {
	start := w.now()

	candidates := w.collect(ctx)
	if len(candidates) == 0 {
		log.Warn().Msg("no deal candidates found")
		return nil
	}

	deals := normalize(candidates, start)
	score(deals, w.rng, start)
	tag(deals, start)

	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Event.Score > deals[j].Event.Score
	})

	persisted := 0
	for _, d := range deals {
		if err := w.analytics.UpsertDocument(ctx, d.Document); err != nil {
			log.Warn().Err(err).Str("deal_id", d.Event.DealID).Msg("deal persistence failed")
			continue
		}
		metrics.DealsIngested.WithLabelValues(d.Source).Inc()
		persisted++
	}

	emitted := w.emit(ctx, deals)

	log.Info().
		Int("candidates", len(candidates)).
		Int("persisted", persisted).
		Int("emitted", emitted).
		Dur("elapsed", w.now().Sub(start)).
		Msg("pipeline pass complete")
	return nil
}

// collect gathers candidates from the CSV datasets and the operational
// inventory. Either source failing leaves the other's candidates intact.
func (w *Worker) collect(ctx context.Context) []Candidate {
	candidates := collectCSV(w.dataDir)

	if w.inventory != nil {
		sampled, err := w.sampleInventory(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("inventory sampling failed")
		} else {
			candidates = append(candidates, sampled...)
		}
	}
	return candidates
}

// HandleRawEvent ingests one externally submitted deal: validate, persist
// to the analytics store, and republish on the main topic. Used as the
// handler for the raw ingress consumer.
func (w *Worker) HandleRawEvent(ctx context.Context, event schema.DealEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid raw deal: %w", err)
	}
	now := w.now()
	if !event.ValidUntil.IsZero() && !event.ValidUntil.After(now) {
		return fmt.Errorf("raw deal %s already expired", event.DealID)
	}

	doc := persistence.DealDocument{
		DealID:             event.DealID,
		Type:               string(event.Type),
		ReferenceID:        event.DealID,
		OriginalPrice:      event.Price.Original,
		DealPrice:          event.Price.Deal,
		DiscountPercentage: event.Price.Discount,
		Currency:           "USD",
		ValidUntil:         event.ValidUntil,
		Tags:               event.Tags,
		Score:              event.Score,
		CreatedAt:          now,
		UpdatedAt:          now,
		Metadata:           event.Payload,
	}
	if err := w.analytics.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to persist raw deal %s: %w", event.DealID, err)
	}
	metrics.DealsIngested.WithLabelValues(sourceRaw).Inc()

	if w.producer != nil {
		if err := w.producer.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("deal_id", event.DealID).Msg("raw deal re-emission failed")
		}
	}
	return nil
}

// emit publishes the top deals, at most emitLimit, skipping failures.
func (w *Worker) emit(ctx context.Context, deals []scoredDeal) int {
	if w.producer == nil {
		return 0
	}

	limit := emitLimit
	if len(deals) < limit {
		limit = len(deals)
	}

	emitted := 0
	for _, d := range deals[:limit] {
		if err := w.producer.Publish(ctx, d.Event); err != nil {
			log.Warn().Err(err).Str("deal_id", d.Event.DealID).Msg("deal emission failed")
			continue
		}
		emitted++
	}
	return emitted
}
