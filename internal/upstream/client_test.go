package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdeck/concierge/internal/schema"
)

func testRequest() schema.BundleRequest {
	return schema.BundleRequest{
		Origin:        "SFO",
		Destination:   "CDG",
		DepartureDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Budget:        3000,
		Preferences:   schema.BundlePreferences{FlightClass: "economy"},
	}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{Base: time.Millisecond, Cap: 5 * time.Millisecond, Attempts: 3}
}

func newTestClient(url string) *Client {
	return NewClient(Options{
		FlightsURL:     url,
		HotelsURL:      url,
		CarsURL:        url,
		RequestTimeout: time.Second,
		Policy:         fastPolicy(),
	})
}

func TestSearchFlightsDecodesResponse(t *testing.T) {
	var gotPayload searchPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/flights/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"flights": []schema.FlightOption{{ID: "f1", Airline: "Pacific Wings", Price: 480}},
			},
		})
	}))
	defer srv.Close()

	flights := newTestClient(srv.URL).SearchFlights(context.Background(), testRequest())
	require.Len(t, flights, 1)
	assert.Equal(t, "Pacific Wings", flights[0].Airline)

	// The payload carries the component's budget share.
	assert.Equal(t, "CDG", gotPayload.Destination)
	assert.InDelta(t, 1200.0, gotPayload.Budget, 0.001)
}

func TestSearchFlightsFallbackOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	req := testRequest()
	flights := newTestClient(srv.URL).SearchFlights(context.Background(), req)

	assert.Equal(t, int32(3), calls.Load(), "retries exhaust the policy")
	require.Len(t, flights, 1)
	assert.Equal(t, "Kayak Airways", flights[0].Airline)
	assert.Equal(t, "SFO", flights[0].Origin)
	// min(budget*0.35, 450)
	assert.Equal(t, 450.0, flights[0].Price)
}

func TestSearchFlightsRecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"flights": []schema.FlightOption{{ID: "f1", Airline: "TransGlobe", Price: 390}},
			},
		})
	}))
	defer srv.Close()

	flights := newTestClient(srv.URL).SearchFlights(context.Background(), testRequest())
	require.Len(t, flights, 1)
	assert.Equal(t, "TransGlobe", flights[0].Airline)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchHotelsFallbackOnEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"hotels": []any{}}})
	}))
	defer srv.Close()

	hotels := newTestClient(srv.URL).SearchHotels(context.Background(), testRequest())
	require.Len(t, hotels, 1)
	assert.Equal(t, "Kayak Grand", hotels[0].Name)
	assert.Equal(t, 4.5, hotels[0].StarRating)
	// min(budget*0.3, 280)
	assert.Equal(t, 280.0, hotels[0].PricePerNight)
	assert.Equal(t, 3, hotels[0].Nights)
}

func TestSearchCarsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cars := newTestClient(srv.URL).SearchCars(context.Background(), testRequest())
	require.Len(t, cars, 1)
	assert.Equal(t, "Kayak Rentals", cars[0].Provider)
	assert.Equal(t, 65.0, cars[0].DailyPrice)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{Base: 300 * time.Millisecond, Cap: 3 * time.Second, Attempts: 5}

	first := p.Backoff(1)
	assert.GreaterOrEqual(t, first, 270*time.Millisecond)
	assert.LessOrEqual(t, first, 330*time.Millisecond)

	huge := p.Backoff(10)
	assert.LessOrEqual(t, huge, 3300*time.Millisecond)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 300*time.Millisecond, p.Base)
	assert.Equal(t, 3*time.Second, p.Cap)
	assert.Equal(t, 3, p.Attempts)
}
