package geocode

import (
	"testing"

	"github.com/swifttiger/backend/internal/models"
)

func TestBuildGeocodeQuery(t *testing.T) {
	q := BuildGeocodeQuery("100 Congress Ave", "Austin", "TX", "78701")
	if q != "100 Congress Ave, Austin, TX, 78701" {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestBuildGeocodeQuerySkipsBlanks(t *testing.T) {
	q := BuildGeocodeQuery("  ", "Austin", "TX", "")
	if q != "Austin, TX" {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestShouldGeocodeSkipWhenCoordsExist(t *testing.T) {
	lat := 30.2672
	lng := -97.7431
	c := models.Customer{ID: 1, Name: "Acme Water", Lat: &lat, Lng: &lng}
	if ShouldGeocode(c, false) {
		t.Fatalf("expected geocode to be skipped when coordinates exist")
	}
	if !ShouldGeocode(c, true) {
		t.Fatalf("expected geocode when force is true")
	}
}

func TestShouldGeocodeWhenCoordsMissing(t *testing.T) {
	if !ShouldGeocode(models.Customer{ID: 2, Name: "No Coords"}, false) {
		t.Fatalf("expected geocode for customer without coordinates")
	}
}
