// Package watch runs the periodic evaluator that matches stored watches
// against current top deals and pushes alerts.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/dealcache"
	"github.com/tripdeck/concierge/internal/metrics"
	"github.com/tripdeck/concierge/internal/schema"
)

// Notifier delivers alert payloads to a user's live channels.
type Notifier interface {
	Broadcast(payload any, userID string)
}

// Alert is the frame pushed over the duplex channel when a watch fires.
type Alert struct {
	Type string            `json:"type"`
	Data schema.WatchEvent `json:"data"`
}

// Evaluator ticks on a fixed interval, firing at most one alert per watch
// per tick. Watches are single-shot: a fired watch deactivates.
type Evaluator struct {
	cache    *dealcache.DealCache
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

// NewEvaluator builds the watch evaluator.
func NewEvaluator(cache *dealcache.DealCache, notifier Notifier, interval time.Duration) *Evaluator {
	return &Evaluator{
		cache:    cache,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock overrides the clock, used by tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Run loops until the context is cancelled. Tick errors are logged and
// swallowed; ticks never overlap.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", e.interval).Msg("watch evaluator started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watch evaluator stopped")
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("watch tick failed")
			}
		}
	}
}

// Tick runs one evaluation pass: snapshot active watches, bucket top deals
// by destination, fire the first in-budget deal per watch, deactivate all
// fired watches in one batch, then fan out alerts.
func (e *Evaluator) Tick(ctx context.Context) error {
	watches, err := e.cache.ActiveWatches(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot watches: %w", err)
	}
	if len(watches) == 0 {
		return nil
	}

	deals, err := e.cache.TopDeals(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("failed to fetch deals: %w", err)
	}

	byDestination := make(map[string][]schema.Deal)
	for _, d := range deals {
		byDestination[d.Destination] = append(byDestination[d.Destination], d)
	}

	type firing struct {
		watch schema.Watch
		deal  schema.Deal
	}
	var triggered []firing
	for _, w := range watches {
		for _, d := range byDestination[w.Destination] {
			if d.Price.Deal <= w.BudgetCeiling {
				triggered = append(triggered, firing{watch: w, deal: d})
				break
			}
		}
	}
	if len(triggered) == 0 {
		return nil
	}

	now := e.now()
	ids := make([]string, len(triggered))
	for i, t := range triggered {
		ids[i] = t.watch.ID
	}
	if err := e.cache.DeactivateWatches(ctx, ids, now); err != nil {
		return fmt.Errorf("failed to deactivate fired watches: %w", err)
	}

	for _, t := range triggered {
		metrics.WatchTriggers.Inc()
		event := schema.WatchEvent{
			WatchID:     t.watch.ID,
			UserID:      t.watch.UserID,
			Destination: t.watch.Destination,
			Message:     fmt.Sprintf("Deal %s now $%.2f", t.deal.DealID, t.deal.Price.Deal),
			TriggeredAt: now,
		}
		e.notifier.Broadcast(Alert{Type: "deal_alert", Data: event}, t.watch.UserID)
		log.Info().Str("watch_id", t.watch.ID).Str("deal_id", t.deal.DealID).
			Str("user_id", t.watch.UserID).Msg("watch fired")
	}

	return nil
}
