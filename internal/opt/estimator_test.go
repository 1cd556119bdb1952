package opt

import (
	"context"
	"math"
	"testing"
)

func TestHaversineEstimatorMatrixShape(t *testing.T) {
	points := []LatLng{
		{Lat: 30.0, Lng: -97.0},
		{Lat: 30.1, Lng: -97.0},
		{Lat: 30.2, Lng: -97.0},
	}
	m, err := HaversineEstimator{}.TravelMatrix(context.Background(), points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.DistanceKm) != 3 || len(m.Minutes) != 3 {
		t.Fatalf("unexpected matrix size")
	}
	if m.DistanceKm[0][0] != 0 {
		t.Fatalf("diagonal must be zero")
	}
	if m.DistanceKm[0][1] <= 0 || m.Minutes[0][1] <= 0 {
		t.Fatalf("expected positive off-diagonal cost")
	}
	if m.DistanceKm[0][2] <= m.DistanceKm[0][1] {
		t.Fatalf("farther point must cost more")
	}
}

func TestHaversineEstimatorMarksInvalidPoints(t *testing.T) {
	points := []LatLng{
		{Lat: 30.0, Lng: -97.0},
		{}, // not geocoded
	}
	m, err := HaversineEstimator{}.TravelMatrix(context.Background(), points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(m.DistanceKm[0][1]) {
		t.Fatalf("expected NaN for pair with missing coordinates")
	}
	if m.usable() {
		t.Fatalf("matrix with NaN entries must not be usable")
	}
}

func TestValidLatLng(t *testing.T) {
	cases := []struct {
		p    LatLng
		want bool
	}{
		{LatLng{Lat: 30.2672, Lng: -97.7431}, true},
		{LatLng{}, false},
		{LatLng{Lat: 91, Lng: 0.1}, false},
		{LatLng{Lat: 45, Lng: -181}, false},
		{LatLng{Lat: math.NaN(), Lng: 10}, false},
	}
	for _, tc := range cases {
		if got := ValidLatLng(tc.p); got != tc.want {
			t.Fatalf("ValidLatLng(%+v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestTableToMatrixNullMeansUnreachable(t *testing.T) {
	d := func(v float64) *float64 { return &v }
	body := osrmTableResponse{
		Code:      "Ok",
		Durations: [][]*float64{{d(0), d(600)}, {nil, d(0)}},
		Distances: [][]*float64{{d(0), d(5000)}, {nil, d(0)}},
	}
	m := tableToMatrix(body)
	if m.DistanceKm[0][1] != 5 {
		t.Fatalf("expected 5 km, got %f", m.DistanceKm[0][1])
	}
	if m.Minutes[0][1] != 10 {
		t.Fatalf("expected 10 minutes, got %f", m.Minutes[0][1])
	}
	if !math.IsNaN(m.DistanceKm[1][0]) || !math.IsNaN(m.Minutes[1][0]) {
		t.Fatalf("expected NaN for unreachable pair")
	}
}
