package broadcast

import (
	"fmt"
	"strings"

	"github.com/locaro/venue-api/internal/matcher"
)

const fallbackTitle = "Venue request"

// guestLabel renders the guest count as its listing bracket.
func guestLabel(guestCount *int) string {
	if guestCount == nil || *guestCount <= 0 {
		return ""
	}
	n := *guestCount
	switch {
	case n < 30:
		return "up to 30 guests"
	case n < 60:
		return "30-59 guests"
	case n < 120:
		return "60-119 guests"
	case n < 240:
		return "120-239 guests"
	case n < 480:
		return "240-479 guests"
	case n < 960:
		return "480-959 guests"
	default:
		return fmt.Sprintf("%d guests", n)
	}
}

func locationLabel(location *string, cityName string) string {
	if location == nil {
		return ""
	}
	loc := strings.TrimSpace(*location)
	if loc == "" {
		return ""
	}
	if strings.EqualFold(loc, matcher.Anywhere) {
		return cityName
	}
	return loc
}

// buildTitle derives the human-readable broadcast title from the criteria
// snapshot. Neither label derivable means the generic fallback.
func buildTitle(guestCount *int, location *string, cityName string) string {
	guests := guestLabel(guestCount)
	loc := locationLabel(location, cityName)

	switch {
	case guests != "" && loc != "":
		return guests + " · " + loc
	case guests != "":
		return guests
	case loc != "":
		return loc
	default:
		return fallbackTitle
	}
}
