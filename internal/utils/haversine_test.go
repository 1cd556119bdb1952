package utils

import (
	"math"
	"testing"
)

func TestHaversineKmKnownDistance(t *testing.T) {
	// Austin to Dallas, roughly 290 km great-circle.
	d := HaversineKm(30.2672, -97.7431, 32.7767, -96.7970)
	if d < 280 || d > 300 {
		t.Fatalf("unexpected distance: %f", d)
	}
}

func TestHaversineKmZeroForSamePoint(t *testing.T) {
	d := HaversineKm(30.2672, -97.7431, 30.2672, -97.7431)
	if math.Abs(d) > 1e-9 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := HaversineKm(30.2672, -97.7431, 29.7604, -95.3698)
	b := HaversineKm(29.7604, -95.3698, 30.2672, -97.7431)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f vs %f", a, b)
	}
}
