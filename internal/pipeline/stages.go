package pipeline

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

const (
	eventTypeDealUpdate = "deal_update"

	defaultValidity = 7 * 24 * time.Hour

	confidenceDeep    = 0.8
	confidenceShallow = 0.6
)

// scoredDeal pairs the wire event with its analytics document through the
// scoring and tagging stages.
type scoredDeal struct {
	Event      schema.DealEvent
	Document   persistence.DealDocument
	Source     string
	changeable bool
}

// normalize converts mined candidates to deals with a derived discount
// percentage and validity window.
func normalize(candidates []Candidate, now time.Time) []scoredDeal {
	deals := make([]scoredDeal, 0, len(candidates))
	for _, c := range candidates {
		if c.OriginalPrice <= 0 || c.DealPrice <= 0 || c.DealPrice >= c.OriginalPrice {
			continue
		}

		discount := round2((c.OriginalPrice - c.DealPrice) / c.OriginalPrice * 100)

		validUntil := now.Add(defaultValidity)
		if c.DepartureTime != nil && c.DepartureTime.After(now) {
			validUntil = c.DepartureTime.Add(-24 * time.Hour)
			if !validUntil.After(now) {
				validUntil = now.Add(time.Hour)
			}
		}

		confidence := confidenceShallow
		if discount > 30 {
			confidence = confidenceDeep
		}

		currency := c.Currency
		if currency == "" {
			currency = "USD"
		}

		dealID := fmt.Sprintf("deal_%s_%s", c.Type, c.ReferenceID)

		metadata := map[string]any{
			"source":     c.Source,
			"confidence": confidence,
		}
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		if c.Route != "" {
			metadata["route"] = c.Route
		}

		deals = append(deals, scoredDeal{
			Event: schema.DealEvent{
				EventType:   eventTypeDealUpdate,
				DealID:      dealID,
				Type:        c.Type,
				Destination: c.Destination,
				Route:       c.Route,
				Summary:     c.Summary,
				Price: schema.DealPrice{
					Original: round2(c.OriginalPrice),
					Deal:     round2(c.DealPrice),
					Discount: discount,
				},
				ValidUntil: validUntil,
				Inventory:  c.Inventory,
				Timestamp:  now,
				Payload:    metadata,
			},
			Document: persistence.DealDocument{
				DealID:             dealID,
				Type:               string(c.Type),
				ReferenceID:        c.ReferenceID,
				OriginalPrice:      round2(c.OriginalPrice),
				DealPrice:          round2(c.DealPrice),
				DiscountPercentage: discount,
				Currency:           currency,
				ValidUntil:         validUntil,
				CreatedAt:          now,
				UpdatedAt:          now,
				Metadata:           metadata,
			},
			Source:     c.Source,
			changeable: c.Changeable,
		})
	}
	return deals
}

// score assigns each deal a composite score from discount depth, urgency,
// availability, and a popularity draw, soft-capped at 100.
func score(deals []scoredDeal, rng *rand.Rand, now time.Time) {
	for i := range deals {
		d := &deals[i]

		discount := d.Event.Price.Discount
		var discountScore float64
		switch {
		case discount > 50:
			discountScore = 40
		case discount > 30:
			discountScore = 30
		case discount > 20:
			discountScore = 20
		default:
			discountScore = discount * 0.5
		}

		hoursLeft := d.Event.ValidUntil.Sub(now).Hours()
		var urgencyScore float64
		switch {
		case hoursLeft <= 24:
			urgencyScore = 20
		case hoursLeft <= 72:
			urgencyScore = 15
		case hoursLeft <= 168:
			urgencyScore = 10
		default:
			urgencyScore = 5
		}

		availabilityScore := 15.0
		if d.Event.Type == schema.TypeFlight {
			switch {
			case d.Event.Inventory != nil && *d.Event.Inventory > 50:
				availabilityScore = 15
			case d.Event.Inventory != nil && *d.Event.Inventory > 20:
				availabilityScore = 10
			default:
				availabilityScore = 5
			}
		}

		popularityScore := rng.Float64() * 20

		total := math.Min(100, discountScore+urgencyScore+availabilityScore+popularityScore)
		d.Event.Score = round2(total)
		d.Document.Score = d.Event.Score
	}
}

// tag derives descriptive tags and booking conditions from the scored deal.
func tag(deals []scoredDeal, now time.Time) {
	for i := range deals {
		d := &deals[i]

		var tags []string
		discount := d.Event.Price.Discount
		if discount > 50 {
			tags = append(tags, "flash_deal")
		}
		if discount < 15 {
			tags = append(tags, "minor_discount")
		}

		hoursLeft := d.Event.ValidUntil.Sub(now).Hours()
		if hoursLeft < 24 {
			tags = append(tags, "expires_soon")
		} else if hoursLeft < 168 {
			tags = append(tags, "limited_time")
		}

		if hoursLeft < 48 {
			tags = append(tags, "last_minute")
		} else if d.Event.Type == schema.TypeFlight {
			tags = append(tags, "advance_booking")
		}
		if d.Event.Type == schema.TypeHotel {
			tags = append(tags, "weekend_getaway")
		}

		if d.Event.Score > 80 {
			tags = append(tags, "top_pick")
		} else if d.Event.Score > 60 {
			tags = append(tags, "good_value")
		}

		var conditions []string
		if d.Event.Type == schema.TypeFlight {
			conditions = append(conditions, "non-refundable")
			if d.changeable {
				conditions = append(conditions, "changeable with fee")
			}
		}

		d.Event.Tags = tags
		d.Document.Tags = tags
		d.Document.Conditions = conditions
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
