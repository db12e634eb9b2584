package upstream

import (
	"math"
	"time"

	"github.com/tripdeck/concierge/internal/metrics"
	"github.com/tripdeck/concierge/internal/schema"
)

// Fallback options are deterministic functions of the request so repeated
// requests with a dead upstream still fingerprint-cache identically.

func fallbackFlights(req schema.BundleRequest) []schema.FlightOption {
	metrics.UpstreamFallbacks.WithLabelValues("flights").Inc()
	origin := req.Origin
	if origin == "" {
		origin = "SFO"
	}
	seats := 12
	return []schema.FlightOption{{
		ID:              "demo-flight-1",
		Origin:          origin,
		Destination:     req.Destination,
		DepartureTime:   req.DepartureDate,
		ArrivalTime:     req.DepartureDate.Add(5 * time.Hour),
		Airline:         "Kayak Airways",
		FlightClass:     req.Preferences.FlightClass,
		Price:           math.Min(req.Budget*0.35, 450),
		DurationMinutes: 310,
		SeatsAvailable:  &seats,
	}}
}

func fallbackHotels(req schema.BundleRequest) []schema.HotelOption {
	metrics.UpstreamFallbacks.WithLabelValues("hotels").Inc()
	return []schema.HotelOption{{
		ID:            "demo-hotel-1",
		Name:          "Kayak Grand",
		StarRating:    4.5,
		PricePerNight: math.Min(req.Budget*0.3, 280),
		Nights:        req.Nights(),
		Amenities:     []string{"wifi", "breakfast", "parking"},
		Neighborhood:  "Downtown",
	}}
}

func fallbackCars(req schema.BundleRequest) []schema.CarOption {
	metrics.UpstreamFallbacks.WithLabelValues("cars").Inc()
	return []schema.CarOption{{
		ID:           "demo-car-1",
		Provider:     "Kayak Rentals",
		CarType:      "SUV",
		DailyPrice:   65.0,
		Seats:        5,
		Transmission: "automatic",
	}}
}
