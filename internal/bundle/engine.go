// Package bundle implements the bundle engine: inventory fan-out,
// Cartesian enumeration, deal overlay, fit scoring, and idempotent
// response caching.
package bundle

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/hotcache"
	"github.com/tripdeck/concierge/internal/metrics"
	"github.com/tripdeck/concierge/internal/schema"
)

const (
	responseTTL = 10 * time.Minute

	maxFlights = 3
	maxHotels  = 3
	maxCars    = 2

	baselineMarkup = 1.15
	maxDealBonus   = 25

	defaultExplanation = "Balanced itinerary with matched preferences"
)

// InventorySearcher fans out to the upstream search services. Implementations
// never fail: exhausted retries degrade to fallback options.
type InventorySearcher interface {
	SearchFlights(ctx context.Context, req schema.BundleRequest) []schema.FlightOption
	SearchHotels(ctx context.Context, req schema.BundleRequest) []schema.HotelOption
	SearchCars(ctx context.Context, req schema.BundleRequest) []schema.CarOption
}

// DealSource provides top deals for the overlay and persists generated
// bundles.
type DealSource interface {
	TopDeals(ctx context.Context, destination string, limit int) ([]schema.Deal, error)
	CacheBundles(ctx context.Context, response schema.BundleResponse, userID string) error
}

// Engine generates ranked, priced bundles.
type Engine struct {
	searcher    InventorySearcher
	deals       DealSource
	hot         hotcache.Cache
	bundleLimit int
}

// NewEngine builds a bundle engine.
func NewEngine(searcher InventorySearcher, deals DealSource, hot hotcache.Cache, bundleLimit int) *Engine {
	if bundleLimit <= 0 {
		bundleLimit = 5
	}
	return &Engine{
		searcher:    searcher,
		deals:       deals,
		hot:         hot,
		bundleLimit: bundleLimit,
	}
}

// Fingerprint hashes the canonical JSON serialization of the request.
// Round-tripping through a map sorts keys, so equal requests always
// fingerprint equally regardless of field order.
func Fingerprint(req schema.BundleRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	var canonical map[string]any
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return ""
	}
	sorted, err := json.Marshal(canonical)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(sorted)
	return hex.EncodeToString(sum[:])
}

// Generate produces the ranked bundle response for a request. Identical
// requests within the cache TTL return the stored response verbatim.
func (e *Engine) Generate(ctx context.Context, req schema.BundleRequest, userID string) (schema.BundleResponse, error) {
	start := time.Now()
	defer func() {
		metrics.BundleGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	key := "concierge:bundle:" + Fingerprint(req)
	if raw, ok := e.hot.Get(ctx, key); ok {
		var cached schema.BundleResponse
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.BundleCacheHits.Inc()
			return cached, nil
		}
	}

	flights, hotels, cars := e.gatherInventory(ctx, req)

	deals, err := e.deals.TopDeals(ctx, req.Destination, 5)
	if err != nil {
		// The overlay is additive; compute without it.
		log.Warn().Err(err).Str("destination", req.Destination).Msg("deal overlay unavailable")
		deals = nil
	}

	bundles := e.enumerate(req, flights, hotels, cars, deals)

	sortByFitScore(bundles)
	if len(bundles) > e.bundleLimit {
		bundles = bundles[:e.bundleLimit]
	}

	response := schema.BundleResponse{
		Bundles:      bundles,
		SearchID:     "search_" + hexID(),
		TotalResults: len(bundles),
	}

	if raw, err := json.Marshal(response); err == nil {
		e.hot.Set(ctx, key, raw, responseTTL)
	}

	if userID != "" {
		if err := e.deals.CacheBundles(ctx, response, userID); err != nil {
			// Persistence is best-effort; the response still succeeds.
			log.Error().Err(err).Str("user_id", userID).Msg("bundle persistence failed")
		}
	}

	return response, nil
}

func (e *Engine) gatherInventory(ctx context.Context, req schema.BundleRequest) ([]schema.FlightOption, []schema.HotelOption, []schema.CarOption) {
	var (
		wg      sync.WaitGroup
		flights []schema.FlightOption
		hotels  []schema.HotelOption
		cars    []schema.CarOption
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		flights = e.searcher.SearchFlights(ctx, req)
	}()
	go func() {
		defer wg.Done()
		hotels = e.searcher.SearchHotels(ctx, req)
	}()
	go func() {
		defer wg.Done()
		cars = e.searcher.SearchCars(ctx, req)
	}()
	wg.Wait()

	return flights, hotels, cars
}

func (e *Engine) enumerate(req schema.BundleRequest, flights []schema.FlightOption, hotels []schema.HotelOption, cars []schema.CarOption, deals []schema.Deal) []schema.Bundle {
	if len(flights) > maxFlights {
		flights = flights[:maxFlights]
	}
	if len(hotels) > maxHotels {
		hotels = hotels[:maxHotels]
	}
	if len(cars) > maxCars {
		cars = cars[:maxCars]
	}

	var bundles []schema.Bundle
	for _, flight := range flights {
		for _, hotel := range hotels {
			for _, car := range cars {
				bundles = append(bundles, e.compose(req, flight, hotel, car, deals))
			}
		}
	}
	return bundles
}

func (e *Engine) compose(req schema.BundleRequest, flight schema.FlightOption, hotel schema.HotelOption, car schema.CarOption, deals []schema.Deal) schema.Bundle {
	nights := hotel.Nights
	if nights < 1 {
		nights = req.Nights()
	}

	hotelTotal := hotel.PricePerNight * float64(nights)
	carTotal := car.DailyPrice * math.Max(float64(nights), 1)
	totalPrice := flight.Price + hotelTotal + carTotal
	baseline := totalPrice * baselineMarkup
	savings := math.Max(0, baseline-totalPrice)

	dealBonus := 0.0
	explanation := defaultExplanation

	for _, deal := range deals {
		if deal.Destination != req.Destination {
			continue
		}
		if deal.Type == schema.TypeHotel && strings.Contains(strings.ToLower(deal.Summary), strings.ToLower(hotel.Name)) {
			savings += deal.Price.Discount
			dealBonus = math.Max(dealBonus, math.Min(deal.Score/2, maxDealBonus))
			explanation = "Hotel deal: " + deal.Summary
			break
		}
		if deal.Type == schema.TypeFlight && flight.Origin != "" && strings.Contains(deal.Summary, flight.Origin) {
			savings += deal.Price.Discount
			dealBonus = math.Max(dealBonus, math.Min(deal.Score/2, maxDealBonus))
			explanation = "Flight deal: " + deal.Summary
			break
		}
	}

	fitScore := fitScore(totalPrice, req, hotel, dealBonus)

	return schema.Bundle{
		ID:          "bundle_" + hexID(),
		Destination: req.Destination,
		TotalPrice:  round2(totalPrice),
		Savings:     round2(savings),
		FitScore:    round2(fitScore),
		Explanation: explanation,
		ValidUntil:  req.DepartureDate.Add(-24 * time.Hour),
		Components:  buildComponents(flight, hotel, car, nights, hotelTotal, carTotal),
	}
}

// fitScore combines a clamped linear budget score, a hotel preference
// score, and the deal bonus, soft-capped at 100.
func fitScore(totalPrice float64, req schema.BundleRequest, hotel schema.HotelOption, dealBonus float64) float64 {
	budgetDelta := math.Max(req.Budget-totalPrice, 0)
	budgetScore := lerp(budgetDelta, 0, req.Budget, 10, 35)

	hotelScore := 10.0
	for _, star := range req.Preferences.HotelStarRating {
		if float64(star) == hotel.StarRating {
			hotelScore = 25
			break
		}
	}

	return math.Min(100, budgetScore+hotelScore+dealBonus)
}

// lerp maps x from [x0, x1] to [y0, y1], clamping outside the range.
func lerp(x, x0, x1, y0, y1 float64) float64 {
	if x1 <= x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return y0 + t*(y1-y0)
}

func buildComponents(flight schema.FlightOption, hotel schema.HotelOption, car schema.CarOption, nights int, hotelTotal, carTotal float64) []schema.BundleComponent {
	return []schema.BundleComponent{
		{
			Type:    schema.TypeFlight,
			Summary: fmt.Sprintf("%s %s→%s", flight.Airline, flight.Origin, flight.Destination),
			Price:   round2(flight.Price),
			Metadata: map[string]any{
				"departure": flight.DepartureTime.UTC().Format(time.RFC3339),
				"arrival":   flight.ArrivalTime.UTC().Format(time.RFC3339),
				"class":     flight.FlightClass,
				"duration":  flight.DurationMinutes,
			},
		},
		{
			Type:    schema.TypeHotel,
			Summary: fmt.Sprintf("%s · %g★", hotel.Name, hotel.StarRating),
			Price:   round2(hotelTotal),
			Metadata: map[string]any{
				"nights":       nights,
				"amenities":    hotel.Amenities,
				"neighborhood": hotel.Neighborhood,
			},
		},
		{
			Type:    schema.TypeCar,
			Summary: fmt.Sprintf("%s %s", car.Provider, car.CarType),
			Price:   round2(carTotal),
			Metadata: map[string]any{
				"transmission": car.Transmission,
				"seats":        car.Seats,
			},
		},
	}
}

// sortByFitScore orders descending, stable for ties on input order.
func sortByFitScore(bundles []schema.Bundle) {
	sort.SliceStable(bundles, func(i, j int) bool {
		return bundles[i].FitScore > bundles[j].FitScore
	})
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func hexID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
