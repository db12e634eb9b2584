// Package dealcache coordinates deal and bundle persistence between the
// durable store and the hot cache. The durable store is authoritative; the
// hot cache is an accelerator that may be reconstructed at any time.
package dealcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/hotcache"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

const (
	userBundlesTTL = 15 * time.Minute
	topDealsLimit  = 5
)

// DealCache is the shared authoritative view of normalized deals plus the
// bundle history store.
type DealCache struct {
	deals   persistence.DealRepo
	bundles persistence.BundleRepo
	watches persistence.WatchRepo
	hot     hotcache.Cache
	now     func() time.Time
}

// New builds the deal cache service.
func New(deals persistence.DealRepo, bundles persistence.BundleRepo, watches persistence.WatchRepo, hot hotcache.Cache) *DealCache {
	return &DealCache{
		deals:   deals,
		bundles: bundles,
		watches: watches,
		hot:     hot,
		now:     time.Now,
	}
}

// WithClock overrides the clock, used by tests.
func (c *DealCache) WithClock(now func() time.Time) *DealCache {
	c.now = now
	return c
}

// UpsertDealEvent inserts or overwrites the cached deal for the event,
// keyed on deal_id. Events already past their validity window are dropped.
func (c *DealCache) UpsertDealEvent(ctx context.Context, event schema.DealEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid deal event: %w", err)
	}
	if !event.ValidUntil.After(c.now()) {
		return fmt.Errorf("deal %s already expired at %s", event.DealID, event.ValidUntil)
	}

	deal := schema.Deal{
		DealID:      event.DealID,
		Type:        event.Type,
		Destination: event.Destination,
		Summary:     event.Summary,
		Price:       event.Price,
		Score:       event.Score,
		Tags:        event.Tags,
		Inventory:   event.Inventory,
		ValidUntil:  event.ValidUntil,
		Route:       event.Route,
		Payload:     event.Payload,
		UpdatedAt:   c.now(),
	}

	return c.deals.Upsert(ctx, deal)
}

// TopDeals returns the highest-score unexpired deals, optionally bounded
// to one destination.
func (c *DealCache) TopDeals(ctx context.Context, destination string, limit int) ([]schema.Deal, error) {
	if limit <= 0 {
		limit = topDealsLimit
	}
	deals, err := c.deals.TopDeals(ctx, destination, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top deals: %w", err)
	}
	return deals, nil
}

// CacheBundles writes a bundle response through to the durable store and,
// when the user is known, mirrors it into the hot cache. Hot-cache failures
// are invisible; durable failures surface so callers can log and degrade.
func (c *DealCache) CacheBundles(ctx context.Context, response schema.BundleResponse, userID string) error {
	records := make([]persistence.BundleRecord, 0, len(response.Bundles))
	for _, b := range response.Bundles {
		var uid *string
		if userID != "" {
			uid = &userID
		}
		records = append(records, persistence.BundleRecord{
			ID:          b.ID,
			SearchID:    response.SearchID,
			UserID:      uid,
			Destination: b.Destination,
			TotalPrice:  b.TotalPrice,
			Savings:     b.Savings,
			FitScore:    b.FitScore,
			Explanation: b.Explanation,
			Components:  b.Components,
			ValidUntil:  b.ValidUntil,
		})
	}

	if err := c.bundles.InsertBatch(ctx, records); err != nil {
		return fmt.Errorf("failed to persist bundles: %w", err)
	}

	if userID != "" {
		if raw, err := json.Marshal(response); err == nil {
			c.hot.Set(ctx, fmt.Sprintf("bundles:%s:%s", userID, response.SearchID), raw, userBundlesTTL)
		}
	}

	return nil
}

// BundlesForUser reads the user's recent bundles, hot cache first, then
// the durable store ordered by creation time desc.
func (c *DealCache) BundlesForUser(ctx context.Context, userID string, limit int) ([]schema.Bundle, error) {
	if limit <= 0 {
		limit = 10
	}

	keys := c.hot.Keys(ctx, fmt.Sprintf("bundles:%s:*", userID))
	var cached []schema.Bundle
	for _, key := range keys {
		if len(cached) >= limit {
			break
		}
		raw, ok := c.hot.Get(ctx, key)
		if !ok {
			continue
		}
		var resp schema.BundleResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("discarding unparseable hot-cache entry")
			continue
		}
		cached = append(cached, resp.Bundles...)
	}
	if len(cached) > 0 {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	records, err := c.bundles.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundles for user %s: %w", userID, err)
	}

	bundles := make([]schema.Bundle, 0, len(records))
	for _, rec := range records {
		bundles = append(bundles, schema.Bundle{
			ID:          rec.ID,
			Destination: rec.Destination,
			TotalPrice:  rec.TotalPrice,
			Savings:     rec.Savings,
			FitScore:    rec.FitScore,
			Explanation: rec.Explanation,
			ValidUntil:  rec.ValidUntil,
			Components:  rec.Components,
		})
	}
	return bundles, nil
}

// CreateWatch assigns an id, activates, and persists a new watch.
func (c *DealCache) CreateWatch(ctx context.Context, payload schema.WatchCreate) (schema.Watch, error) {
	if err := payload.Validate(); err != nil {
		return schema.Watch{}, err
	}

	watch := schema.Watch{
		ID:                     "watch_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		UserID:                 payload.UserID,
		Destination:            payload.Destination,
		BudgetCeiling:          payload.BudgetCeiling,
		MinFitScore:            payload.MinFitScore,
		NotifyOnInventoryBelow: payload.NotifyOnInventoryBelow,
		Active:                 true,
		CreatedAt:              c.now(),
	}

	if err := c.watches.Insert(ctx, watch); err != nil {
		return schema.Watch{}, fmt.Errorf("failed to create watch: %w", err)
	}

	return watch, nil
}

// ActiveWatches snapshots all currently active watches.
func (c *DealCache) ActiveWatches(ctx context.Context) ([]schema.Watch, error) {
	return c.watches.ListActive(ctx)
}

// DeactivateWatches marks fired watches inactive in one batch write.
func (c *DealCache) DeactivateWatches(ctx context.Context, watchIDs []string, triggeredAt time.Time) error {
	return c.watches.Deactivate(ctx, watchIDs, triggeredAt)
}
