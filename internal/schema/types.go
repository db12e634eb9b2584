package schema

import (
	"time"
)

// ComponentType identifies the inventory class a deal or bundle component
// belongs to.
type ComponentType string

const (
	TypeFlight ComponentType = "flight"
	TypeHotel  ComponentType = "hotel"
	TypeCar    ComponentType = "car"
)

// DealPrice carries the pricing triple for a deal event.
type DealPrice struct {
	Original float64 `json:"original"`
	Deal     float64 `json:"deal"`
	Discount float64 `json:"discount"`
}

// DealEvent is the wire envelope published on deal.events. The Payload map
// carries schema-forward fields the consumer does not model; everything the
// concierge acts on is typed.
type DealEvent struct {
	EventType   string         `json:"event_type"`
	DealID      string         `json:"deal_id"`
	Type        ComponentType  `json:"type"`
	Destination string         `json:"destination"`
	Route       string         `json:"route,omitempty"`
	Summary     string         `json:"summary"`
	Price       DealPrice      `json:"price"`
	Score       float64        `json:"score"`
	Tags        []string       `json:"tags"`
	ValidUntil  time.Time      `json:"valid_until"`
	Inventory   *int           `json:"inventory,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Deal is the cached, normalized form of a deal event.
type Deal struct {
	DealID      string         `json:"deal_id" db:"deal_id"`
	Type        ComponentType  `json:"type" db:"type"`
	Destination string         `json:"destination" db:"destination"`
	Summary     string         `json:"summary" db:"summary"`
	Price       DealPrice      `json:"price"`
	Score       float64        `json:"score" db:"score"`
	Tags        []string       `json:"tags"`
	Inventory   *int           `json:"inventory,omitempty" db:"inventory"`
	ValidUntil  time.Time      `json:"valid_until" db:"valid_until"`
	Route       string         `json:"route,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the deal is past its validity window.
func (d Deal) Expired(now time.Time) bool {
	return !d.ValidUntil.After(now)
}

// FlightOption is one flight returned by the flights search service.
type FlightOption struct {
	ID              string    `json:"id"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureTime   time.Time `json:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time"`
	Airline         string    `json:"airline"`
	FlightClass     string    `json:"flight_class"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	SeatsAvailable  *int      `json:"seats_available,omitempty"`
}

// HotelOption is one hotel returned by the hotels search service.
type HotelOption struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	StarRating    float64  `json:"star_rating"`
	PricePerNight float64  `json:"price_per_night"`
	Nights        int      `json:"nights"`
	Amenities     []string `json:"amenities"`
	Neighborhood  string   `json:"neighborhood,omitempty"`
}

// CarOption is one rental car returned by the cars search service.
type CarOption struct {
	ID           string  `json:"id"`
	Provider     string  `json:"provider"`
	CarType      string  `json:"car_type"`
	DailyPrice   float64 `json:"daily_price"`
	Seats        int     `json:"seats"`
	Transmission string  `json:"transmission,omitempty"`
}

// BundlePreferences captures soft preferences applied during fit scoring.
type BundlePreferences struct {
	FlightClass     string   `json:"flight_class"`
	HotelStarRating []int    `json:"hotel_star_rating,omitempty"`
	Amenities       []string `json:"amenities,omitempty"`
	PetFriendly     *bool    `json:"pet_friendly,omitempty"`
	AvoidRedEye     *bool    `json:"avoid_red_eye,omitempty"`
}

// BundleConstraints captures hard party-size constraints.
type BundleConstraints struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Rooms    int `json:"rooms"`
}

// BundleRequest is the client request for bundle generation.
type BundleRequest struct {
	Origin        string            `json:"origin,omitempty"`
	Destination   string            `json:"destination"`
	DepartureDate time.Time         `json:"departure_date"`
	ReturnDate    *time.Time        `json:"return_date,omitempty"`
	Budget        float64           `json:"budget"`
	Preferences   BundlePreferences `json:"preferences"`
	Constraints   BundleConstraints `json:"constraints"`
}

// Nights derives the stay length from the travel dates. A missing return
// date extrapolates a three-day trip.
func (r BundleRequest) Nights() int {
	ret := r.DepartureDate.Add(3 * 24 * time.Hour)
	if r.ReturnDate != nil {
		ret = *r.ReturnDate
	}
	nights := int(ret.Sub(r.DepartureDate).Hours() / 24)
	if nights < 1 {
		nights = 1
	}
	return nights
}

// BundleComponent is one leg of a composed bundle.
type BundleComponent struct {
	Type     ComponentType  `json:"type"`
	Summary  string         `json:"summary"`
	Price    float64        `json:"price"`
	Metadata map[string]any `json:"metadata"`
}

// Bundle is a composed flight+hotel+car itinerary with a fit score.
type Bundle struct {
	ID          string            `json:"id"`
	Destination string            `json:"destination"`
	TotalPrice  float64           `json:"total_price"`
	Savings     float64           `json:"savings"`
	FitScore    float64           `json:"fit_score"`
	Explanation string            `json:"explanation"`
	ValidUntil  time.Time         `json:"valid_until"`
	Components  []BundleComponent `json:"components"`
}

// BundleResponse wraps the ranked bundles for one search.
type BundleResponse struct {
	Bundles      []Bundle `json:"bundles"`
	SearchID     string   `json:"search_id"`
	TotalResults int      `json:"total_results"`
}

// WatchCreate is the client payload for registering a deal watch.
type WatchCreate struct {
	UserID                 string  `json:"user_id"`
	Destination            string  `json:"destination"`
	BudgetCeiling          float64 `json:"budget_ceiling"`
	MinFitScore            float64 `json:"min_fit_score"`
	NotifyOnInventoryBelow *int    `json:"notify_on_inventory_below,omitempty"`
}

// Watch is a stored single-shot deal watch.
type Watch struct {
	ID                     string     `json:"id" db:"id"`
	UserID                 string     `json:"user_id" db:"user_id"`
	Destination            string     `json:"destination" db:"destination"`
	BudgetCeiling          float64    `json:"budget_ceiling" db:"budget_ceiling"`
	MinFitScore            float64    `json:"min_fit_score" db:"min_fit_score"`
	NotifyOnInventoryBelow *int       `json:"notify_on_inventory_below,omitempty" db:"notify_on_inventory_below"`
	Active                 bool       `json:"active" db:"active"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	LastTriggeredAt        *time.Time `json:"last_triggered_at,omitempty" db:"last_triggered_at"`
}

// WatchEvent is the alert payload pushed over the duplex channel when a
// watch fires.
type WatchEvent struct {
	WatchID     string    `json:"watch_id"`
	UserID      string    `json:"user_id"`
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// APIError is the structured error half of the response envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the uniform HTTP response envelope.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	TraceID string    `json:"trace_id"`
}

// UIDeal is the flattened deal record returned to the frontend.
type UIDeal struct {
	ID                 string   `json:"id"`
	Type               string   `json:"type"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	OriginalPrice      float64  `json:"originalPrice"`
	DiscountedPrice    float64  `json:"discountedPrice"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Destination        string   `json:"destination"`
	ExpiresAt          string   `json:"expiresAt"`
	Score              float64  `json:"score"`
	Tags               []string `json:"tags"`
}

// FlattenDeal converts a cached deal to its UI shape.
func FlattenDeal(d Deal) UIDeal {
	title := d.Summary
	if title == "" {
		title = "Deal " + d.DealID
	}
	return UIDeal{
		ID:                 d.DealID,
		Type:               string(d.Type),
		Title:              title,
		Description:        "",
		OriginalPrice:      d.Price.Original,
		DiscountedPrice:    d.Price.Deal,
		DiscountPercentage: d.Price.Discount,
		Destination:        d.Destination,
		ExpiresAt:          d.ValidUntil.UTC().Format(time.RFC3339),
		Score:              d.Score,
		Tags:               d.Tags,
	}
}
