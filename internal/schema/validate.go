package schema

import (
	"fmt"
	"strings"
)

func isLocationCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Validate checks boundary invariants on a bundle request and normalizes
// location codes to upper case.
func (r *BundleRequest) Validate() error {
	r.Destination = strings.ToUpper(strings.TrimSpace(r.Destination))
	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))

	if !isLocationCode(r.Destination) {
		return fmt.Errorf("destination must be a 3-letter location code, got %q", r.Destination)
	}
	if r.Origin != "" && !isLocationCode(r.Origin) {
		return fmt.Errorf("origin must be a 3-letter location code, got %q", r.Origin)
	}
	if r.DepartureDate.IsZero() {
		return fmt.Errorf("departure_date is required")
	}
	if r.ReturnDate != nil && !r.ReturnDate.After(r.DepartureDate) {
		return fmt.Errorf("return_date must be after departure_date")
	}
	if r.Budget <= 0 {
		return fmt.Errorf("budget must be positive, got %.2f", r.Budget)
	}
	for _, star := range r.Preferences.HotelStarRating {
		if star < 1 || star > 5 {
			return fmt.Errorf("hotel star rating out of range: %d", star)
		}
	}
	if r.Preferences.FlightClass == "" {
		r.Preferences.FlightClass = "economy"
	}
	switch r.Preferences.FlightClass {
	case "economy", "premium", "business", "first":
	default:
		return fmt.Errorf("unknown flight class %q", r.Preferences.FlightClass)
	}
	if r.Constraints.Adults == 0 {
		r.Constraints.Adults = 1
	}
	if r.Constraints.Adults < 1 {
		return fmt.Errorf("adults must be at least 1")
	}
	if r.Constraints.Children < 0 {
		return fmt.Errorf("children must be non-negative")
	}
	if r.Constraints.Rooms == 0 {
		r.Constraints.Rooms = 1
	}
	if r.Constraints.Rooms < 1 {
		return fmt.Errorf("rooms must be at least 1")
	}
	return nil
}

// Validate checks boundary invariants on a watch creation payload and
// applies defaults.
func (w *WatchCreate) Validate() error {
	w.Destination = strings.ToUpper(strings.TrimSpace(w.Destination))

	if w.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !isLocationCode(w.Destination) {
		return fmt.Errorf("destination must be a 3-letter location code, got %q", w.Destination)
	}
	if w.BudgetCeiling <= 0 {
		return fmt.Errorf("budget_ceiling must be positive")
	}
	if w.MinFitScore == 0 {
		w.MinFitScore = 60
	}
	if w.MinFitScore < 0 || w.MinFitScore > 100 {
		return fmt.Errorf("min_fit_score must be within [0, 100]")
	}
	if w.NotifyOnInventoryBelow == nil {
		def := 5
		w.NotifyOnInventoryBelow = &def
	} else if *w.NotifyOnInventoryBelow < 1 {
		return fmt.Errorf("notify_on_inventory_below must be positive")
	}
	return nil
}

// Validate checks the minimum a consumed deal event must carry before it
// can be cached.
func (e *DealEvent) Validate() error {
	if e.DealID == "" {
		return fmt.Errorf("deal_id is required")
	}
	switch e.Type {
	case TypeFlight, TypeHotel, TypeCar:
	default:
		return fmt.Errorf("unknown deal type %q", e.Type)
	}
	if e.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if e.Price.Deal > e.Price.Original {
		return fmt.Errorf("deal price %.2f exceeds original %.2f", e.Price.Deal, e.Price.Original)
	}
	if e.Score < 0 || e.Score > 100 {
		return fmt.Errorf("score must be within [0, 100], got %.2f", e.Score)
	}
	if e.Inventory != nil && *e.Inventory < 0 {
		return fmt.Errorf("inventory must be non-negative")
	}
	return nil
}
