package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tripdeck/concierge/internal/schema"
)

// Budget allocation shares per component. These shape the payload-level
// budget hint sent upstream, not a hard cap on returned prices.
const (
	flightsAllocation = 0.4
	hotelsAllocation  = 0.4
	carsAllocation    = 0.2
)

// Client fans out to the three upstream search services. Each service gets
// its own circuit breaker; all calls share one rate limiter and one
// concurrency semaphore.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	policy     RetryPolicy
	limiter    *rate.Limiter
	semaphore  chan struct{}

	flightsURL string
	hotelsURL  string
	carsURL    string

	breakers map[string]*gobreaker.CircuitBreaker
}

// Options configures a Client.
type Options struct {
	FlightsURL     string
	HotelsURL      string
	CarsURL        string
	RequestTimeout time.Duration
	Policy         RetryPolicy
	MaxConcurrency int
	RatePerSecond  float64
}

// NewClient builds the upstream search client.
func NewClient(opts Options) *Client {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 16
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 50
	}
	if opts.Policy.Attempts == 0 {
		opts.Policy = DefaultRetryPolicy()
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, name := range []string{"flights", "hotels", "cars"} {
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("service", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("upstream circuit state change")
			},
		})
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		timeout:    opts.RequestTimeout,
		policy:     opts.Policy,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.MaxConcurrency),
		semaphore:  make(chan struct{}, opts.MaxConcurrency),
		flightsURL: opts.FlightsURL,
		hotelsURL:  opts.HotelsURL,
		carsURL:    opts.CarsURL,
		breakers:   breakers,
	}
}

type searchPayload struct {
	Destination   string                   `json:"destination"`
	Origin        string                   `json:"origin,omitempty"`
	DepartureDate string                   `json:"departureDate"`
	ReturnDate    *string                  `json:"returnDate"`
	Budget        float64                  `json:"budget"`
	Preferences   schema.BundlePreferences `json:"preferences"`
	Constraints   schema.BundleConstraints `json:"constraints"`
}

func buildSearchPayload(req schema.BundleRequest, allocation float64) searchPayload {
	var returnDate *string
	if req.ReturnDate != nil {
		s := req.ReturnDate.UTC().Format(time.RFC3339)
		returnDate = &s
	}
	return searchPayload{
		Destination:   req.Destination,
		Origin:        req.Origin,
		DepartureDate: req.DepartureDate.UTC().Format(time.RFC3339),
		ReturnDate:    returnDate,
		Budget:        req.Budget * allocation,
		Preferences:   req.Preferences,
		Constraints:   req.Constraints,
	}
}

// SearchFlights queries the flights service, falling back to a synthetic
// option when every retry fails.
func (c *Client) SearchFlights(ctx context.Context, req schema.BundleRequest) []schema.FlightOption {
	var out struct {
		Data struct {
			Flights []schema.FlightOption `json:"flights"`
		} `json:"data"`
	}
	payload := buildSearchPayload(req, flightsAllocation)
	if err := c.postSearch(ctx, "flights", c.flightsURL+"/flights/search", payload, &out); err != nil {
		log.Warn().Err(err).Str("destination", req.Destination).Msg("flights search failed, using fallback")
		return fallbackFlights(req)
	}
	if len(out.Data.Flights) == 0 {
		return fallbackFlights(req)
	}
	return out.Data.Flights
}

// SearchHotels queries the hotels service, falling back to a synthetic
// option when every retry fails.
func (c *Client) SearchHotels(ctx context.Context, req schema.BundleRequest) []schema.HotelOption {
	var out struct {
		Data struct {
			Hotels []schema.HotelOption `json:"hotels"`
		} `json:"data"`
	}
	payload := buildSearchPayload(req, hotelsAllocation)
	if err := c.postSearch(ctx, "hotels", c.hotelsURL+"/hotels/search", payload, &out); err != nil {
		log.Warn().Err(err).Str("destination", req.Destination).Msg("hotels search failed, using fallback")
		return fallbackHotels(req)
	}
	if len(out.Data.Hotels) == 0 {
		return fallbackHotels(req)
	}
	return out.Data.Hotels
}

// SearchCars queries the cars service, falling back to a synthetic option
// when every retry fails.
func (c *Client) SearchCars(ctx context.Context, req schema.BundleRequest) []schema.CarOption {
	var out struct {
		Data struct {
			Cars []schema.CarOption `json:"cars"`
		} `json:"data"`
	}
	payload := buildSearchPayload(req, carsAllocation)
	if err := c.postSearch(ctx, "cars", c.carsURL+"/cars/search", payload, &out); err != nil {
		log.Warn().Err(err).Str("destination", req.Destination).Msg("cars search failed, using fallback")
		return fallbackCars(req)
	}
	if len(out.Data.Cars) == 0 {
		return fallbackCars(req)
	}
	return out.Data.Cars
}

func (c *Client) postSearch(ctx context.Context, service, url string, payload any, out any) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal search payload: %w", err)
	}

	breaker := c.breakers[service]

	var lastErr error
	for attempt := 1; attempt <= c.policy.Attempts; attempt++ {
		if attempt > 1 {
			backoff := c.policy.Backoff(attempt - 1)
			log.Debug().Dur("backoff", backoff).Int("attempt", attempt).
				Str("service", service).Msg("retrying upstream search")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := breaker.Execute(func() (any, error) {
			return nil, c.doOnce(ctx, url, body, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("%s search exhausted %d attempts: %w", service, c.policy.Attempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, url string, body []byte, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
