package pipeline

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdeck/concierge/internal/schema"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	departure := time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
	seats := 30
	candidates := []Candidate{
		{
			ReferenceID:   "f1",
			Type:          schema.TypeFlight,
			Destination:   "CDG",
			Route:         "SFO-CDG",
			Summary:       "Pacific Wings SFO→CDG",
			OriginalPrice: 800,
			DealPrice:     560,
			DepartureTime: &departure,
			Inventory:     &seats,
			Source:        sourceDB,
		},
		{
			ReferenceID:   "h1",
			Type:          schema.TypeHotel,
			Destination:   "Paris",
			Summary:       "Paris Grand",
			OriginalPrice: 200,
			DealPrice:     130,
			Source:        sourceCSV,
		},
	}

	deals := normalize(candidates, testNow)
	require.Len(t, deals, 2)

	flight := deals[0]
	assert.Equal(t, "deal_flight_f1", flight.Event.DealID)
	assert.Equal(t, 30.0, flight.Event.Price.Discount)
	assert.Equal(t, departure.Add(-24*time.Hour), flight.Event.ValidUntil)
	assert.Equal(t, "SFO-CDG", flight.Document.Metadata["route"])
	assert.Equal(t, "USD", flight.Document.Currency)

	hotel := deals[1]
	assert.Equal(t, "deal_hotel_h1", hotel.Event.DealID)
	assert.Equal(t, 35.0, hotel.Event.Price.Discount)
	// No departure: default seven-day validity.
	assert.Equal(t, testNow.Add(defaultValidity), hotel.Event.ValidUntil)
}

func TestNormalizeConfidenceFollowsDiscount(t *testing.T) {
	candidates := []Candidate{
		{ReferenceID: "a", Type: schema.TypeHotel, OriginalPrice: 200, DealPrice: 100, Source: sourceCSV},
		{ReferenceID: "b", Type: schema.TypeFlight, OriginalPrice: 800, DealPrice: 560, Source: sourceDB},
	}

	deals := normalize(candidates, testNow)
	require.Len(t, deals, 2)

	// A 50% discount is high confidence even from a mined dataset.
	assert.Equal(t, confidenceDeep, deals[0].Document.Metadata["confidence"])
	// A 30% discount stays low confidence even from operational inventory.
	assert.Equal(t, confidenceShallow, deals[1].Document.Metadata["confidence"])
}

func TestNormalizeDropsNonDeals(t *testing.T) {
	candidates := []Candidate{
		{ReferenceID: "a", Type: schema.TypeHotel, OriginalPrice: 100, DealPrice: 100},
		{ReferenceID: "b", Type: schema.TypeHotel, OriginalPrice: 100, DealPrice: 150},
		{ReferenceID: "c", Type: schema.TypeHotel, OriginalPrice: 0, DealPrice: 50},
		{ReferenceID: "d", Type: schema.TypeHotel, OriginalPrice: 100, DealPrice: 0},
	}
	assert.Empty(t, normalize(candidates, testNow))
}

func TestScoreBands(t *testing.T) {
	seatsHigh, seatsLow := 60, 10
	deals := []scoredDeal{
		{Event: schema.DealEvent{
			Type:       schema.TypeFlight,
			Price:      schema.DealPrice{Discount: 55},
			ValidUntil: testNow.Add(12 * time.Hour),
			Inventory:  &seatsHigh,
		}},
		{Event: schema.DealEvent{
			Type:       schema.TypeFlight,
			Price:      schema.DealPrice{Discount: 10},
			ValidUntil: testNow.Add(30 * 24 * time.Hour),
			Inventory:  &seatsLow,
		}},
		{Event: schema.DealEvent{
			Type:       schema.TypeHotel,
			Price:      schema.DealPrice{Discount: 35},
			ValidUntil: testNow.Add(100 * time.Hour),
		}},
		{Event: schema.DealEvent{
			Type:       schema.TypeHotel,
			Price:      schema.DealPrice{Discount: 18},
			ValidUntil: testNow.Add(100 * time.Hour),
		}},
		{Event: schema.DealEvent{
			Type:       schema.TypeHotel,
			Price:      schema.DealPrice{Discount: 50},
			ValidUntil: testNow.Add(100 * time.Hour),
		}},
	}

	score(deals, rand.New(rand.NewSource(7)), testNow)

	popularity := rand.New(rand.NewSource(7))
	// Deep discount, expiring, well stocked: 40 + 20 + 15 + pop.
	assert.InDelta(t, 75+popularity.Float64()*20, deals[0].Event.Score, 0.01)
	// Shallow discount, far out, scarce: 5 + 5 + 5 + pop.
	assert.InDelta(t, 15+popularity.Float64()*20, deals[1].Event.Score, 0.01)
	// Hotel availability is flat: 30 + 10 + 15 + pop.
	assert.InDelta(t, 55+popularity.Float64()*20, deals[2].Event.Score, 0.01)
	// An 18% discount earns half its depth, not the 20-point band: 9 + 10 + 15 + pop.
	assert.InDelta(t, 34+popularity.Float64()*20, deals[3].Event.Score, 0.01)
	// The band edges are exclusive: exactly 50 lands in the 30-point band.
	assert.InDelta(t, 55+popularity.Float64()*20, deals[4].Event.Score, 0.01)

	for _, d := range deals {
		assert.LessOrEqual(t, d.Event.Score, 100.0)
		assert.Equal(t, d.Event.Score, d.Document.Score)
	}
}

func TestTagRules(t *testing.T) {
	deals := []scoredDeal{
		{
			Event: schema.DealEvent{
				Type:       schema.TypeFlight,
				Price:      schema.DealPrice{Discount: 55},
				ValidUntil: testNow.Add(12 * time.Hour),
				Score:      85,
			},
			changeable: true,
		},
		{
			Event: schema.DealEvent{
				Type:       schema.TypeFlight,
				Price:      schema.DealPrice{Discount: 10},
				ValidUntil: testNow.Add(30 * 24 * time.Hour),
				Score:      50,
			},
		},
		{
			Event: schema.DealEvent{
				Type:       schema.TypeHotel,
				Price:      schema.DealPrice{Discount: 35},
				ValidUntil: testNow.Add(100 * time.Hour),
				Score:      70,
			},
		},
		// Hotels get last_minute from the validity window even without a
		// departure, and a score of exactly 60 is not good_value.
		{
			Event: schema.DealEvent{
				Type:       schema.TypeHotel,
				Price:      schema.DealPrice{Discount: 22},
				ValidUntil: testNow.Add(30 * time.Hour),
				Score:      60,
			},
		},
	}

	tag(deals, testNow)

	assert.ElementsMatch(t, []string{"flash_deal", "expires_soon", "last_minute", "top_pick"}, deals[0].Event.Tags)
	assert.ElementsMatch(t, []string{"non-refundable", "changeable with fee"}, deals[0].Document.Conditions)

	assert.ElementsMatch(t, []string{"minor_discount", "advance_booking"}, deals[1].Event.Tags)
	assert.Equal(t, []string{"non-refundable"}, deals[1].Document.Conditions)

	assert.ElementsMatch(t, []string{"limited_time", "weekend_getaway", "good_value"}, deals[2].Event.Tags)
	assert.Empty(t, deals[2].Document.Conditions)

	assert.ElementsMatch(t, []string{"limited_time", "last_minute", "weekend_getaway"}, deals[3].Event.Tags)
	assert.Empty(t, deals[3].Document.Conditions)
}
