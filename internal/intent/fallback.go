package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tripdeck/concierge/internal/schema"
)

// cityCodes maps city names the fallback recognizes to their primary
// airport code.
var cityCodes = map[string]string{
	"paris":         "CDG",
	"tokyo":         "NRT",
	"london":        "LHR",
	"new york":      "JFK",
	"barcelona":     "BCN",
	"lisbon":        "LIS",
	"rome":          "FCO",
	"sydney":        "SYD",
	"austin":        "AUS",
	"miami":         "MIA",
	"san francisco": "SFO",
	"los angeles":   "LAX",
	"chicago":       "ORD",
	"denver":        "DEN",
	"seattle":       "SEA",
}

var (
	budgetPattern   = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d+)?)`)
	budgetWordForm  = regexp.MustCompile(`budget\s+(?:of\s+|is\s+|around\s+)?(\d+)`)
	inDaysPattern   = regexp.MustCompile(`in\s+(\d+)\s+days?`)
	inWeeksPattern  = regexp.MustCompile(`in\s+(\d+)\s+weeks?`)
	iataPattern     = regexp.MustCompile(`\b(?:to|from)\s+([A-Z]{3})\b`)
)

// ParseMessage is the regex fallback: city names, dollar budgets, relative
// dates, and preference keywords.
func ParseMessage(message string, now time.Time) Intent {
	lower := strings.ToLower(message)
	intent := Intent{}

	for city, code := range cityCodes {
		if !strings.Contains(lower, city) {
			continue
		}
		idx := strings.Index(lower, city)
		if before := lower[:idx]; strings.HasSuffix(strings.TrimSpace(before), "from") {
			intent.Origin = code
		} else if intent.Destination == "" {
			intent.Destination = code
		}
	}
	for _, m := range iataPattern.FindAllStringSubmatch(message, -1) {
		if strings.HasPrefix(strings.ToLower(m[0]), "from") {
			intent.Origin = m[1]
		} else if intent.Destination == "" {
			intent.Destination = m[1]
		}
	}

	if m := budgetPattern.FindStringSubmatch(message); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			intent.Budget = v
		}
	} else if m := budgetWordForm.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			intent.Budget = v
		}
	}

	if departure := relativeDate(lower, now); departure != nil {
		intent.DepartureDate = departure
	}

	intent.Keywords = preferenceKeywords(lower)
	return intent
}

func relativeDate(lower string, now time.Time) *time.Time {
	day := now.Truncate(24 * time.Hour)
	switch {
	case strings.Contains(lower, "tomorrow"):
		t := day.Add(24 * time.Hour)
		return &t
	case strings.Contains(lower, "this weekend"):
		t := nextWeekday(day, time.Saturday)
		return &t
	case strings.Contains(lower, "next week"):
		t := day.Add(7 * 24 * time.Hour)
		return &t
	case strings.Contains(lower, "next month"):
		t := day.Add(30 * 24 * time.Hour)
		return &t
	}

	if m := inDaysPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			t := day.Add(time.Duration(n) * 24 * time.Hour)
			return &t
		}
	}
	if m := inWeeksPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			t := day.Add(time.Duration(n) * 7 * 24 * time.Hour)
			return &t
		}
	}
	return nil
}

func nextWeekday(from time.Time, target time.Weekday) time.Time {
	days := (int(target) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.Add(time.Duration(days) * 24 * time.Hour)
}

func preferenceKeywords(lower string) []string {
	var keywords []string
	for _, kw := range []string{
		"luxury", "cheap", "budget", "pet", "red-eye", "business class",
		"first class", "pool", "spa", "wifi", "beach", "family",
	} {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// keywordPreferences maps extracted keywords onto bundle preferences.
func keywordPreferences(keywords []string) schema.BundlePreferences {
	prefs := schema.BundlePreferences{}
	truth := true
	for _, kw := range keywords {
		switch kw {
		case "luxury":
			prefs.HotelStarRating = []int{4, 5}
		case "cheap", "budget":
			if prefs.HotelStarRating == nil {
				prefs.HotelStarRating = []int{2, 3}
			}
		case "pet":
			prefs.PetFriendly = &truth
		case "red-eye":
			prefs.AvoidRedEye = &truth
		case "business class":
			prefs.FlightClass = "business"
		case "first class":
			prefs.FlightClass = "first"
		case "pool", "spa", "wifi":
			prefs.Amenities = append(prefs.Amenities, kw)
		}
	}
	return prefs
}
