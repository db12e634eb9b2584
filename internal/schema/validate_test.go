package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() BundleRequest {
	return BundleRequest{
		Origin:        "sfo",
		Destination:   "cdg",
		DepartureDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Budget:        3000,
	}
}

func TestBundleRequestValidate(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Validate())

	assert.Equal(t, "CDG", req.Destination)
	assert.Equal(t, "SFO", req.Origin)
	assert.Equal(t, "economy", req.Preferences.FlightClass)
	assert.Equal(t, 1, req.Constraints.Adults)
	assert.Equal(t, 1, req.Constraints.Rooms)
}

func TestBundleRequestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BundleRequest)
	}{
		{"bad destination", func(r *BundleRequest) { r.Destination = "Paris" }},
		{"bad origin", func(r *BundleRequest) { r.Origin = "SF" }},
		{"zero budget", func(r *BundleRequest) { r.Budget = 0 }},
		{"negative budget", func(r *BundleRequest) { r.Budget = -100 }},
		{"missing departure", func(r *BundleRequest) { r.DepartureDate = time.Time{} }},
		{"return before departure", func(r *BundleRequest) {
			ret := r.DepartureDate.Add(-24 * time.Hour)
			r.ReturnDate = &ret
		}},
		{"star rating out of range", func(r *BundleRequest) { r.Preferences.HotelStarRating = []int{6} }},
		{"unknown flight class", func(r *BundleRequest) { r.Preferences.FlightClass = "cargo" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestBundleRequestNights(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Validate())

	// No return date extrapolates a three-day trip.
	assert.Equal(t, 3, req.Nights())

	ret := req.DepartureDate.Add(5 * 24 * time.Hour)
	req.ReturnDate = &ret
	assert.Equal(t, 5, req.Nights())

	sameDay := req.DepartureDate.Add(6 * time.Hour)
	req.ReturnDate = &sameDay
	assert.Equal(t, 1, req.Nights())
}

func TestWatchCreateDefaults(t *testing.T) {
	w := WatchCreate{UserID: "u1", Destination: "nrt", BudgetCeiling: 900}
	require.NoError(t, w.Validate())

	assert.Equal(t, "NRT", w.Destination)
	assert.Equal(t, 60.0, w.MinFitScore)
	require.NotNil(t, w.NotifyOnInventoryBelow)
	assert.Equal(t, 5, *w.NotifyOnInventoryBelow)
}

func TestWatchCreateRejects(t *testing.T) {
	w := WatchCreate{Destination: "NRT", BudgetCeiling: 900}
	assert.Error(t, w.Validate(), "missing user")

	w = WatchCreate{UserID: "u1", Destination: "NRT"}
	assert.Error(t, w.Validate(), "missing budget")

	w = WatchCreate{UserID: "u1", Destination: "NRT", BudgetCeiling: 900, MinFitScore: 120}
	assert.Error(t, w.Validate(), "score out of range")
}

func TestDealEventValidate(t *testing.T) {
	event := DealEvent{
		DealID:      "d1",
		Type:        TypeHotel,
		Destination: "Paris",
		Price:       DealPrice{Original: 200, Deal: 150, Discount: 25},
		Score:       70,
	}
	require.NoError(t, event.Validate())

	bad := event
	bad.Type = "cruise"
	assert.Error(t, bad.Validate())

	bad = event
	bad.Price.Deal = 250
	assert.Error(t, bad.Validate())

	bad = event
	bad.Score = 101
	assert.Error(t, bad.Validate())
}

func TestFlattenDeal(t *testing.T) {
	valid := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	d := Deal{
		DealID:      "d1",
		Type:        TypeFlight,
		Destination: "CDG",
		Summary:     "Pacific Wings SFO→CDG",
		Price:       DealPrice{Original: 800, Deal: 560, Discount: 30},
		Score:       82,
		Tags:        []string{"flash_deal"},
		ValidUntil:  valid,
	}

	ui := FlattenDeal(d)
	assert.Equal(t, "d1", ui.ID)
	assert.Equal(t, "flight", ui.Type)
	assert.Equal(t, "Pacific Wings SFO→CDG", ui.Title)
	assert.Equal(t, 560.0, ui.DiscountedPrice)
	assert.Equal(t, 30.0, ui.DiscountPercentage)
	assert.Equal(t, "2026-09-01T12:00:00Z", ui.ExpiresAt)

	// Empty summary falls back to a generated title.
	d.Summary = ""
	assert.Equal(t, "Deal d1", FlattenDeal(d).Title)
}
