package dealcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdeck/concierge/internal/hotcache"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

type fakeDealRepo struct {
	upserts []schema.Deal
	deals   []schema.Deal
	err     error
}

func (f *fakeDealRepo) Upsert(_ context.Context, deal schema.Deal) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, deal)
	return nil
}

func (f *fakeDealRepo) TopDeals(context.Context, string, int) ([]schema.Deal, error) {
	return f.deals, f.err
}

type fakeBundleRepo struct {
	inserted [][]persistence.BundleRecord
	records  []persistence.BundleRecord
	err      error
}

func (f *fakeBundleRepo) InsertBatch(_ context.Context, records []persistence.BundleRecord) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, records)
	return nil
}

func (f *fakeBundleRepo) ListByUser(context.Context, string, int) ([]persistence.BundleRecord, error) {
	return f.records, f.err
}

type fakeWatchRepo struct {
	watches     []schema.Watch
	deactivated []string
}

func (f *fakeWatchRepo) Insert(_ context.Context, w schema.Watch) error {
	f.watches = append(f.watches, w)
	return nil
}

func (f *fakeWatchRepo) ListActive(context.Context) ([]schema.Watch, error) {
	var active []schema.Watch
	for _, w := range f.watches {
		if w.Active {
			active = append(active, w)
		}
	}
	return active, nil
}

func (f *fakeWatchRepo) Deactivate(_ context.Context, ids []string, _ time.Time) error {
	f.deactivated = append(f.deactivated, ids...)
	return nil
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
}

func newTestCache(deals *fakeDealRepo, bundles *fakeBundleRepo, watches *fakeWatchRepo) *DealCache {
	return New(deals, bundles, watches, hotcache.NewMemory()).WithClock(fixedClock())
}

func validEvent() schema.DealEvent {
	return schema.DealEvent{
		EventType:   "deal_update",
		DealID:      "d1",
		Type:        schema.TypeHotel,
		Destination: "CDG",
		Summary:     "Paris Grand weekend rate",
		Price:       schema.DealPrice{Original: 200, Deal: 150, Discount: 25},
		Score:       75,
		ValidUntil:  time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpsertDealEvent(t *testing.T) {
	deals := &fakeDealRepo{}
	cache := newTestCache(deals, &fakeBundleRepo{}, &fakeWatchRepo{})

	require.NoError(t, cache.UpsertDealEvent(context.Background(), validEvent()))
	require.Len(t, deals.upserts, 1)
	assert.Equal(t, "d1", deals.upserts[0].DealID)
	assert.Equal(t, fixedClock()(), deals.upserts[0].UpdatedAt)
}

func TestUpsertDealEventRejectsExpired(t *testing.T) {
	deals := &fakeDealRepo{}
	cache := newTestCache(deals, &fakeBundleRepo{}, &fakeWatchRepo{})

	event := validEvent()
	event.ValidUntil = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	err := cache.UpsertDealEvent(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
	assert.Empty(t, deals.upserts)
}

func TestUpsertDealEventRejectsInvalid(t *testing.T) {
	deals := &fakeDealRepo{}
	cache := newTestCache(deals, &fakeBundleRepo{}, &fakeWatchRepo{})

	event := validEvent()
	event.DealID = ""
	assert.Error(t, cache.UpsertDealEvent(context.Background(), event))
	assert.Empty(t, deals.upserts)
}

func TestCacheBundlesMirrorsHotCache(t *testing.T) {
	bundles := &fakeBundleRepo{}
	cache := newTestCache(&fakeDealRepo{}, bundles, &fakeWatchRepo{})

	resp := schema.BundleResponse{
		SearchID: "search_abc",
		Bundles: []schema.Bundle{{
			ID: "b1", Destination: "CDG", TotalPrice: 995,
			Components: []schema.BundleComponent{},
		}},
		TotalResults: 1,
	}
	require.NoError(t, cache.CacheBundles(context.Background(), resp, "u1"))
	require.Len(t, bundles.inserted, 1)
	require.NotNil(t, bundles.inserted[0][0].UserID)
	assert.Equal(t, "u1", *bundles.inserted[0][0].UserID)

	got, err := cache.BundlesForUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)
}

func TestBundlesForUserFallsThroughToStore(t *testing.T) {
	bundles := &fakeBundleRepo{records: []persistence.BundleRecord{{
		ID: "b2", SearchID: "search_x", Destination: "NRT", TotalPrice: 1800,
	}}}
	cache := newTestCache(&fakeDealRepo{}, bundles, &fakeWatchRepo{})

	got, err := cache.BundlesForUser(context.Background(), "u2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b2", got[0].ID)
}

func TestBundlesForUserStoreError(t *testing.T) {
	bundles := &fakeBundleRepo{err: errors.New("db down")}
	cache := newTestCache(&fakeDealRepo{}, bundles, &fakeWatchRepo{})

	_, err := cache.BundlesForUser(context.Background(), "u3", 10)
	assert.Error(t, err)
}

func TestCreateWatch(t *testing.T) {
	watches := &fakeWatchRepo{}
	cache := newTestCache(&fakeDealRepo{}, &fakeBundleRepo{}, watches)

	watch, err := cache.CreateWatch(context.Background(), schema.WatchCreate{
		UserID: "u1", Destination: "cdg", BudgetCeiling: 800,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(watch.ID, "watch_"))
	assert.True(t, watch.Active)
	assert.Equal(t, "CDG", watch.Destination)
	assert.Equal(t, 60.0, watch.MinFitScore)
	require.Len(t, watches.watches, 1)
}

func TestCreateWatchRejectsInvalid(t *testing.T) {
	watches := &fakeWatchRepo{}
	cache := newTestCache(&fakeDealRepo{}, &fakeBundleRepo{}, watches)

	_, err := cache.CreateWatch(context.Background(), schema.WatchCreate{Destination: "CDG"})
	assert.Error(t, err)
	assert.Empty(t, watches.watches)
}

func TestTopDealsDefaultsLimit(t *testing.T) {
	deals := &fakeDealRepo{deals: []schema.Deal{{DealID: "d1"}}}
	cache := newTestCache(deals, &fakeBundleRepo{}, &fakeWatchRepo{})

	got, err := cache.TopDeals(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
