package pipeline

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/schema"
)

const (
	airbnbFile = "airbnb_listings.csv"
	flightFile = "flight_prices.csv"
	hotelFile  = "hotel_offers.csv"

	// Mining thresholds. Airbnb listings qualify at 15% below their
	// neighborhood mean; fares and room rates qualify in the cheap tail of
	// their route or city distribution.
	airbnbBelowMean  = 0.85
	flightPercentile = 0.30
	hotelPercentile  = 0.35

	simulatedRecords = 50
)

type airbnbListing struct {
	ID           string
	Name         string
	Neighborhood string
	City         string
	Price        float64
}

type flightFare struct {
	ID        string
	Airline   string
	Origin    string
	Dest      string
	Departure time.Time
	Price     float64
	Seats     int
}

type hotelOffer struct {
	ID    string
	Name  string
	City  string
	Stars float64
	Price float64
	Rooms int
}

// collectCSV mines deal candidates from the three CSV datasets. A missing
// or unreadable file falls back to a deterministic simulated dataset so a
// fresh deployment still produces deals.
func collectCSV(dataDir string) []Candidate {
	var out []Candidate
	out = append(out, mineAirbnb(loadAirbnb(dataDir))...)
	out = append(out, mineFlights(loadFlights(dataDir))...)
	out = append(out, mineHotels(loadHotels(dataDir))...)
	return out
}

// mineAirbnb keeps listings priced at least 15% under their neighborhood
// mean, with the mean as the reference price.
func mineAirbnb(listings []airbnbListing) []Candidate {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, l := range listings {
		sums[l.Neighborhood] += l.Price
		counts[l.Neighborhood]++
	}

	var out []Candidate
	for _, l := range listings {
		mean := sums[l.Neighborhood] / float64(counts[l.Neighborhood])
		if l.Price > mean*airbnbBelowMean {
			continue
		}
		out = append(out, Candidate{
			ReferenceID:   "airbnb_" + l.ID,
			Type:          schema.TypeHotel,
			Destination:   l.City,
			Summary:       l.Name,
			OriginalPrice: mean,
			DealPrice:     l.Price,
			Source:        sourceCSV,
			Metadata:      map[string]any{"neighborhood": l.Neighborhood},
		})
	}
	return out
}

// mineFlights keeps fares in the bottom 30% of their route's price
// distribution, with the route mean as the reference price.
func mineFlights(fares []flightFare) []Candidate {
	byRoute := make(map[string][]float64)
	for _, f := range fares {
		byRoute[f.Origin+"-"+f.Dest] = append(byRoute[f.Origin+"-"+f.Dest], f.Price)
	}

	thresholds := make(map[string]float64, len(byRoute))
	means := make(map[string]float64, len(byRoute))
	for route, prices := range byRoute {
		thresholds[route] = percentile(prices, flightPercentile)
		means[route] = mean(prices)
	}

	var out []Candidate
	for _, f := range fares {
		route := f.Origin + "-" + f.Dest
		if f.Price > thresholds[route] || f.Price >= means[route] {
			continue
		}
		departure := f.Departure
		seats := f.Seats
		out = append(out, Candidate{
			ReferenceID:   "fare_" + f.ID,
			Type:          schema.TypeFlight,
			Destination:   f.Dest,
			Route:         route,
			Summary:       fmt.Sprintf("%s %s→%s", f.Airline, f.Origin, f.Dest),
			OriginalPrice: means[route],
			DealPrice:     f.Price,
			DepartureTime: &departure,
			Inventory:     &seats,
			Source:        sourceCSV,
			Metadata:      map[string]any{"airline": f.Airline},
		})
	}
	return out
}

// mineHotels keeps rates in the bottom 35% of their city's distribution.
func mineHotels(offers []hotelOffer) []Candidate {
	byCity := make(map[string][]float64)
	for _, o := range offers {
		byCity[o.City] = append(byCity[o.City], o.Price)
	}

	thresholds := make(map[string]float64, len(byCity))
	means := make(map[string]float64, len(byCity))
	for city, prices := range byCity {
		thresholds[city] = percentile(prices, hotelPercentile)
		means[city] = mean(prices)
	}

	var out []Candidate
	for _, o := range offers {
		if o.Price > thresholds[o.City] || o.Price >= means[o.City] {
			continue
		}
		rooms := o.Rooms
		out = append(out, Candidate{
			ReferenceID:   "hotel_" + o.ID,
			Type:          schema.TypeHotel,
			Destination:   o.City,
			Summary:       o.Name,
			OriginalPrice: means[o.City],
			DealPrice:     o.Price,
			Inventory:     &rooms,
			Source:        sourceCSV,
			Metadata:      map[string]any{"star_rating": o.Stars},
		})
	}
	return out
}

func loadAirbnb(dataDir string) []airbnbListing {
	rows, err := readCSV(filepath.Join(dataDir, airbnbFile))
	if err != nil {
		log.Warn().Err(err).Msg("airbnb dataset unavailable, simulating")
		return simulateAirbnb()
	}

	var out []airbnbListing
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		price, err := strconv.ParseFloat(row[4], 64)
		if err != nil || price <= 0 {
			continue
		}
		out = append(out, airbnbListing{
			ID:           row[0],
			Name:         row[1],
			Neighborhood: row[2],
			City:         row[3],
			Price:        price,
		})
	}
	return out
}

func loadFlights(dataDir string) []flightFare {
	rows, err := readCSV(filepath.Join(dataDir, flightFile))
	if err != nil {
		log.Warn().Err(err).Msg("flight dataset unavailable, simulating")
		return simulateFlights()
	}

	var out []flightFare
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		departure, err := time.Parse("2006-01-02", row[4])
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(row[5], 64)
		if err != nil || price <= 0 {
			continue
		}
		seats, err := strconv.Atoi(row[6])
		if err != nil {
			continue
		}
		out = append(out, flightFare{
			ID:        row[0],
			Airline:   row[1],
			Origin:    row[2],
			Dest:      row[3],
			Departure: departure,
			Price:     price,
			Seats:     seats,
		})
	}
	return out
}

func loadHotels(dataDir string) []hotelOffer {
	rows, err := readCSV(filepath.Join(dataDir, hotelFile))
	if err != nil {
		log.Warn().Err(err).Msg("hotel dataset unavailable, simulating")
		return simulateHotels()
	}

	var out []hotelOffer
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		stars, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(row[4], 64)
		if err != nil || price <= 0 {
			continue
		}
		rooms, err := strconv.Atoi(row[5])
		if err != nil {
			continue
		}
		out = append(out, hotelOffer{
			ID:    row[0],
			Name:  row[1],
			City:  row[2],
			Stars: stars,
			Price: price,
			Rooms: rooms,
		})
	}
	return out
}

// readCSV returns the data rows of a CSV file, header stripped.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("%s has no data rows", filepath.Base(path))
	}
	return rows[1:], nil
}

// Simulated datasets use fixed seeds so repeated passes mine identical
// candidates and upserts stay idempotent.

var simCities = []string{"Paris", "Tokyo", "Barcelona", "Lisbon", "Austin"}

func simulateAirbnb() []airbnbListing {
	rng := rand.New(rand.NewSource(42))
	neighborhoods := []string{"Old Town", "Riverside", "Arts District", "Harbor"}

	out := make([]airbnbListing, 0, simulatedRecords)
	for i := 0; i < simulatedRecords; i++ {
		city := simCities[rng.Intn(len(simCities))]
		hood := neighborhoods[rng.Intn(len(neighborhoods))]
		out = append(out, airbnbListing{
			ID:           fmt.Sprintf("sim-%03d", i),
			Name:         fmt.Sprintf("%s stay in %s", hood, city),
			Neighborhood: city + "/" + hood,
			City:         city,
			Price:        60 + rng.Float64()*240,
		})
	}
	return out
}

func simulateFlights() []flightFare {
	rng := rand.New(rand.NewSource(43))
	airlines := []string{"Pacific Wings", "TransGlobe", "Meridian Air"}
	routes := [][2]string{{"SFO", "CDG"}, {"JFK", "NRT"}, {"LAX", "BCN"}, {"ORD", "LIS"}}

	out := make([]flightFare, 0, simulatedRecords)
	for i := 0; i < simulatedRecords; i++ {
		route := routes[rng.Intn(len(routes))]
		out = append(out, flightFare{
			ID:        fmt.Sprintf("sim-%03d", i),
			Airline:   airlines[rng.Intn(len(airlines))],
			Origin:    route[0],
			Dest:      route[1],
			Departure: time.Now().Add(time.Duration(24+rng.Intn(30*24)) * time.Hour).Truncate(time.Hour),
			Price:     180 + rng.Float64()*720,
			Seats:     5 + rng.Intn(120),
		})
	}
	return out
}

func simulateHotels() []hotelOffer {
	rng := rand.New(rand.NewSource(44))
	brands := []string{"Grand", "Plaza", "Harbor View", "Central"}

	out := make([]hotelOffer, 0, simulatedRecords)
	for i := 0; i < simulatedRecords; i++ {
		city := simCities[rng.Intn(len(simCities))]
		brand := brands[rng.Intn(len(brands))]
		out = append(out, hotelOffer{
			ID:    fmt.Sprintf("sim-%03d", i),
			Name:  fmt.Sprintf("%s %s", city, brand),
			City:  city,
			Stars: float64(2+rng.Intn(4)) + 0.5*float64(rng.Intn(2)),
			Price: 70 + rng.Float64()*330,
			Rooms: 1 + rng.Intn(40),
		})
	}
	return out
}

// percentile returns the value at fraction p of the sorted distribution.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
