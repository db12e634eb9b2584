package pipeline

import (
	"context"
	"fmt"

	"github.com/tripdeck/concierge/internal/schema"
)

const (
	sampleLimit = 100

	flightKeepProbability = 0.3
	hotelKeepProbability  = 0.4
)

// sampleInventory converts a random slice of operational inventory into
// deal candidates with simulated discount bands.
func (w *Worker) sampleInventory(ctx context.Context) ([]Candidate, error) {
	flights, err := w.inventory.SampleFlights(ctx, sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample flights: %w", err)
	}

	rooms, err := w.inventory.SampleHotelRooms(ctx, sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample hotel rooms: %w", err)
	}

	var candidates []Candidate
	for _, f := range flights {
		if w.rng.Float64() > flightKeepProbability {
			continue
		}
		seats := f.AvailableSeats
		departure := f.DepartureTime
		factor := 0.7 + w.rng.Float64()*0.25
		candidates = append(candidates, Candidate{
			ReferenceID:   f.ID,
			Type:          schema.TypeFlight,
			Destination:   f.DestCode,
			Route:         f.OriginCode + "-" + f.DestCode,
			Summary:       fmt.Sprintf("%s %s→%s", f.Airline, f.OriginCode, f.DestCode),
			OriginalPrice: f.Price,
			DealPrice:     f.Price * factor,
			Currency:      f.Currency,
			DepartureTime: &departure,
			Inventory:     &seats,
			Changeable:    f.Changeable,
			Source:        sourceDB,
			Metadata:      map[string]any{"airline": f.Airline},
		})
	}

	for _, r := range rooms {
		if w.rng.Float64() > hotelKeepProbability {
			continue
		}
		rooms := r.AvailableRooms
		factor := 0.6 + w.rng.Float64()*0.3
		candidates = append(candidates, Candidate{
			ReferenceID:   r.ID,
			Type:          schema.TypeHotel,
			Destination:   r.City,
			Summary:       fmt.Sprintf("%s %s", r.HotelName, r.RoomType),
			OriginalPrice: r.PricePerNight,
			DealPrice:     r.PricePerNight * factor,
			Currency:      r.Currency,
			Inventory:     &rooms,
			Source:        sourceDB,
			Metadata: map[string]any{
				"star_rating": r.StarRating,
				"room_type":   r.RoomType,
			},
		})
	}

	return candidates, nil
}
