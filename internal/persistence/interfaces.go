package persistence

import (
	"context"
	"time"

	"github.com/tripdeck/concierge/internal/schema"
)

// BundleRecord is the durable form of a generated bundle.
type BundleRecord struct {
	ID          string                   `json:"id" db:"id"`
	SearchID    string                   `json:"search_id" db:"search_id"`
	UserID      *string                  `json:"user_id,omitempty" db:"user_id"`
	Destination string                   `json:"destination" db:"destination"`
	TotalPrice  float64                  `json:"total_price" db:"total_price"`
	Savings     float64                  `json:"savings" db:"savings"`
	FitScore    float64                  `json:"fit_score" db:"fit_score"`
	Explanation string                   `json:"explanation" db:"explanation"`
	Components  []schema.BundleComponent `json:"components" db:"components"`
	ValidUntil  time.Time                `json:"valid_until" db:"valid_until"`
	CreatedAt   time.Time                `json:"created_at" db:"created_at"`
}

// SampledFlight is an operational-inventory flight row used by the deals
// worker to mine candidate deals.
type SampledFlight struct {
	ID             string    `db:"id"`
	Airline        string    `db:"airline"`
	OriginCode     string    `db:"origin_airport_code"`
	DestCode       string    `db:"destination_airport_code"`
	DepartureTime  time.Time `db:"departure_time"`
	Price          float64   `db:"price"`
	Currency       string    `db:"currency"`
	AvailableSeats int       `db:"available_seats"`
	Changeable     bool      `db:"changeable"`
}

// SampledHotelRoom is an operational-inventory hotel room row joined with
// its hotel.
type SampledHotelRoom struct {
	ID             string  `db:"id"`
	HotelName      string  `db:"hotel_name"`
	RoomType       string  `db:"room_type"`
	StarRating     float64 `db:"star_rating"`
	City           string  `db:"address_city"`
	PricePerNight  float64 `db:"price_per_night"`
	Currency       string  `db:"currency"`
	AvailableRooms int     `db:"available_rooms"`
}

// BundleRepo persists generated bundles.
type BundleRepo interface {
	// InsertBatch stores every bundle of one response in a single transaction.
	InsertBatch(ctx context.Context, records []BundleRecord) error

	// ListByUser returns the user's bundles ordered by creation time desc.
	ListByUser(ctx context.Context, userID string, limit int) ([]BundleRecord, error)
}

// DealRepo is the durable side of the deal cache.
type DealRepo interface {
	// Upsert inserts or overwrites a deal keyed by deal_id.
	Upsert(ctx context.Context, deal schema.Deal) error

	// TopDeals returns the highest-score unexpired deals, optionally
	// filtered to one destination. Ties break on updated_at desc.
	TopDeals(ctx context.Context, destination string, limit int) ([]schema.Deal, error)
}

// WatchRepo persists standing watch requests.
type WatchRepo interface {
	Insert(ctx context.Context, watch schema.Watch) error
	ListActive(ctx context.Context) ([]schema.Watch, error)

	// Deactivate marks the given watches inactive and stamps
	// last_triggered_at in one batch write.
	Deactivate(ctx context.Context, watchIDs []string, triggeredAt time.Time) error
}

// PreferenceRepo stores per-user preference documents.
type PreferenceRepo interface {
	Upsert(ctx context.Context, userID, destination string, prefs schema.BundlePreferences) error
	Get(ctx context.Context, userID string) (*schema.BundlePreferences, error)
}

// InventoryRepo samples operational inventory for the deals worker using
// offset-based pagination rather than a full-table random sort.
type InventoryRepo interface {
	SampleFlights(ctx context.Context, limit int) ([]SampledFlight, error)
	SampleHotelRooms(ctx context.Context, limit int) ([]SampledHotelRoom, error)
}

// DealDocument is the canonical analytics-store form of a pipeline deal,
// keyed by (reference_id, type).
type DealDocument struct {
	DealID             string         `bson:"dealId"`
	Type               string         `bson:"type"`
	ReferenceID        string         `bson:"referenceId"`
	OriginalPrice      float64        `bson:"originalPrice"`
	DealPrice          float64        `bson:"dealPrice"`
	DiscountPercentage float64        `bson:"discountPercentage"`
	Currency           string         `bson:"currency"`
	ValidUntil         time.Time      `bson:"validUntil"`
	Conditions         []string       `bson:"conditions"`
	Tags               []string       `bson:"tags"`
	Score              float64        `bson:"aiScore"`
	CreatedAt          time.Time      `bson:"createdAt"`
	UpdatedAt          time.Time      `bson:"updatedAt"`
	Metadata           map[string]any `bson:"metadata"`
}

// AnalyticsStore holds canonical deal documents for analytics reads.
type AnalyticsStore interface {
	// UpsertDocument writes the document keyed by (reference_id, type),
	// last writer wins.
	UpsertDocument(ctx context.Context, doc DealDocument) error
}
