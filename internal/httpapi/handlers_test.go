package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdeck/concierge/internal/bundle"
	"github.com/tripdeck/concierge/internal/dealcache"
	"github.com/tripdeck/concierge/internal/hotcache"
	"github.com/tripdeck/concierge/internal/intent"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/registry"
	"github.com/tripdeck/concierge/internal/schema"
)

type stubSearcher struct{}

func (stubSearcher) SearchFlights(context.Context, schema.BundleRequest) []schema.FlightOption {
	return []schema.FlightOption{{ID: "f1", Origin: "SFO", Destination: "CDG", Airline: "Pacific Wings", Price: 500}}
}

func (stubSearcher) SearchHotels(context.Context, schema.BundleRequest) []schema.HotelOption {
	return []schema.HotelOption{{ID: "h1", Name: "Paris Grand", StarRating: 4, PricePerNight: 120, Nights: 3}}
}

func (stubSearcher) SearchCars(context.Context, schema.BundleRequest) []schema.CarOption {
	return []schema.CarOption{{ID: "c1", Provider: "Roulez", CarType: "compact", DailyPrice: 45}}
}

type stubDealRepo struct{ deals []schema.Deal }

func (s *stubDealRepo) Upsert(context.Context, schema.Deal) error { return nil }
func (s *stubDealRepo) TopDeals(context.Context, string, int) ([]schema.Deal, error) {
	return s.deals, nil
}

type stubBundleRepo struct{}

func (stubBundleRepo) InsertBatch(context.Context, []persistence.BundleRecord) error { return nil }
func (stubBundleRepo) ListByUser(context.Context, string, int) ([]persistence.BundleRecord, error) {
	return []persistence.BundleRecord{{ID: "b1", SearchID: "search_x", Destination: "CDG", TotalPrice: 995}}, nil
}

type stubWatchRepo struct{ inserted []schema.Watch }

func (s *stubWatchRepo) Insert(_ context.Context, w schema.Watch) error {
	s.inserted = append(s.inserted, w)
	return nil
}
func (s *stubWatchRepo) ListActive(context.Context) ([]schema.Watch, error) { return nil, nil }
func (s *stubWatchRepo) Deactivate(context.Context, []string, time.Time) error {
	return nil
}

func newTestServer(deals *stubDealRepo, watches *stubWatchRepo) *Server {
	hot := hotcache.NewMemory()
	cache := dealcache.New(deals, stubBundleRepo{}, watches, hot)
	engine := bundle.NewEngine(stubSearcher{}, cache, hot, 5)
	extractor := intent.NewExtractor("http://127.0.0.1:1", "test-model", 50*time.Millisecond)

	return NewServer(Options{
		ServiceName:    "concierge-svc",
		Version:        "1.0.0",
		Addr:           "127.0.0.1:0",
		RequestTimeout: 2 * time.Second,
		Engine:         engine,
		Cache:          cache,
		Extractor:      extractor,
		Registry:       registry.New(),
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})
	rec, body := doJSON(t, s.Router(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "concierge-svc", body["service"])
}

func TestGenerateBundles(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/bundles", map[string]any{
		"destination":    "cdg",
		"departure_date": "2026-09-10T00:00:00Z",
		"budget":         3000,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["trace_id"])
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	data := body["data"].(map[string]any)
	bundles := data["bundles"].([]any)
	require.Len(t, bundles, 1)
	first := bundles[0].(map[string]any)
	assert.Equal(t, 995.0, first["total_price"])
	assert.Equal(t, "CDG", first["destination"])
}

func TestGenerateBundlesValidationError(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/bundles", map[string]any{
		"destination":    "Paris",
		"departure_date": "2026-09-10T00:00:00Z",
		"budget":         3000,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "invalid_request", errObj["code"])
	assert.NotEmpty(t, body["trace_id"])
}

func TestGenerateBundlesBadJSON(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	req := httptest.NewRequest(http.MethodPost, "/concierge/bundles", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserBundles(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/concierge/bundles/user/u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, 1.0, data["totalResults"])
}

func TestCreateWatch(t *testing.T) {
	watches := &stubWatchRepo{}
	s := newTestServer(&stubDealRepo{}, watches)

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/watch", map[string]any{
		"user_id":        "u1",
		"destination":    "cdg",
		"budget_ceiling": 800,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.True(t, strings.HasPrefix(data["watchId"].(string), "watch_"))
	assert.Equal(t, true, data["active"])
	require.Len(t, watches.inserted, 1)
}

func TestCreateWatchValidationError(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/watch", map[string]any{
		"destination": "CDG",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestDealsFlattened(t *testing.T) {
	deals := &stubDealRepo{deals: []schema.Deal{{
		DealID:      "d1",
		Type:        schema.TypeFlight,
		Destination: "CDG",
		Summary:     "Pacific Wings SFO→CDG",
		Price:       schema.DealPrice{Original: 800, Deal: 560, Discount: 30},
		Score:       82,
		Tags:        []string{"flash_deal"},
		ValidUntil:  time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}}}
	s := newTestServer(deals, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/concierge/deals?destination=CDG", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, 1.0, data["totalResults"])

	flattened := data["deals"].([]any)[0].(map[string]any)
	assert.Equal(t, "d1", flattened["id"])
	assert.Equal(t, 560.0, flattened["discountedPrice"])
	assert.Equal(t, 30.0, flattened["discountPercentage"])
	assert.Equal(t, "2026-09-01T12:00:00Z", flattened["expiresAt"])
}

func TestChatWithoutDestination(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/chat", map[string]any{
		"user_id": "u1",
		"message": "hello there",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Contains(t, data["error"], "destination")
	assert.Contains(t, data, "extracted_intent")
}

func TestChatWithoutDepartureDate(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/chat", map[string]any{
		"user_id": "u1",
		"message": "I want a trip to Paris for $3,000",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["error"])
	// The partial extraction is echoed back.
	intent := data["extracted_intent"].(map[string]any)
	assert.Equal(t, "CDG", intent["destination"])
}

func TestChatGeneratesBundles(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/chat", map[string]any{
		"user_id": "u1",
		"message": "I want a trip to Paris next week for $3,000",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Contains(t, data["reply"], "CDG")
	assert.NotEmpty(t, data["bundles"])
}

func TestChatRequiresMessage(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/concierge/chat", map[string]any{
		"user_id": "u1",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	s := newTestServer(&stubDealRepo{}, &stubWatchRepo{})

	req := httptest.NewRequest(http.MethodOptions, "/concierge/deals", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
