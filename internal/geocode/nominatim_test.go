package geocode

import "testing"

func TestParseNominatimItems(t *testing.T) {
	items := []nominatimItem{
		{
			Lat:         "30.2672",
			Lon:         "-97.7431",
			DisplayName: "Austin, Travis County, Texas",
			Importance:  0.72,
		},
	}
	res, err := parseNominatimItems(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lat != 30.2672 || res.Lng != -97.7431 {
		t.Fatalf("unexpected coordinates: %+v", res)
	}
	if res.DisplayName != "Austin, Travis County, Texas" {
		t.Fatalf("unexpected display name: %s", res.DisplayName)
	}
	if res.Confidence != 0.72 {
		t.Fatalf("unexpected confidence: %f", res.Confidence)
	}
}

func TestParseNominatimItemsEmpty(t *testing.T) {
	if _, err := parseNominatimItems(nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseNominatimItemsBadLat(t *testing.T) {
	items := []nominatimItem{{Lat: "not-a-number", Lon: "-97.7"}}
	if _, err := parseNominatimItems(items); err == nil {
		t.Fatalf("expected parse error")
	}
}
