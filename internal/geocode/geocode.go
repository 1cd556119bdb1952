package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/swifttiger/backend/internal/models"
)

var ErrNotFound = errors.New("geocode: address not found")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lng float64, displayName string, confidence float64, err error)
}

// BuildGeocodeQuery assembles a free-form search query from the
// customer's address fields, skipping blanks.
func BuildGeocodeQuery(street, city, state, zip string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{street, city, state, zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ShouldGeocode reports whether a customer still needs coordinates.
func ShouldGeocode(c models.Customer, force bool) bool {
	if force {
		return true
	}
	return c.Lat == nil || c.Lng == nil
}
