package opt

import (
	"context"
	"errors"
	"testing"
)

func lineStops() []Stop {
	// scrambled stops along a south-north line
	return []Stop{
		{JobID: 3, Point: LatLng{Lat: 30.3, Lng: -97.0}, Priority: "Medium", ServiceMinutes: 30},
		{JobID: 1, Point: LatLng{Lat: 30.1, Lng: -97.0}, Priority: "Medium", ServiceMinutes: 30},
		{JobID: 4, Point: LatLng{Lat: 30.4, Lng: -97.0}, Priority: "Medium", ServiceMinutes: 30},
		{JobID: 2, Point: LatLng{Lat: 30.2, Lng: -97.0}, Priority: "Medium", ServiceMinutes: 30},
	}
}

func TestPlanRequiresStops(t *testing.T) {
	o := Optimizer{}
	_, err := o.Plan(context.Background(), LatLng{Lat: 30, Lng: -97}, nil, Options{})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPlanOrdersStopsAlongLine(t *testing.T) {
	o := Optimizer{}
	res, err := o.Plan(context.Background(), LatLng{Lat: 30.0, Lng: -97.0}, lineStops(), Options{Mode: ModeDistance})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 3, 0, 2}
	if len(res.Order) != len(want) {
		t.Fatalf("unexpected order length: %d", len(res.Order))
	}
	for i := range want {
		if res.Order[i] != want[i] {
			t.Fatalf("unexpected order: got %v, want %v", res.Order, want)
		}
	}
	if res.Fallback {
		t.Fatalf("unexpected fallback: %s", res.Warning)
	}
	if res.ServiceMinutes != 120 {
		t.Fatalf("unexpected service minutes: %f", res.ServiceMinutes)
	}
	if res.TotalMinutes <= res.ServiceMinutes {
		t.Fatalf("expected travel time on top of service time, got %f", res.TotalMinutes)
	}
}

func TestPlanNeverWorseThanGivenOrder(t *testing.T) {
	stops := lineStops()
	start := LatLng{Lat: 30.0, Lng: -97.0}

	points := []LatLng{start}
	for _, st := range stops {
		points = append(points, st.Point)
	}
	m, err := HaversineEstimator{}.TravelMatrix(context.Background(), points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	givenCost := pathCost(m.DistanceKm, identityOrder(len(stops)))

	res, err := Optimizer{}.Plan(context.Background(), start, stops, Options{Mode: ModeDistance})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalDistanceKm > givenCost+1e-9 {
		t.Fatalf("optimized distance %f worse than given order %f", res.TotalDistanceKm, givenCost)
	}
}

func TestPlanIsPermutation(t *testing.T) {
	stops := lineStops()
	res, err := Optimizer{}.Plan(context.Background(), LatLng{Lat: 30.0, Lng: -97.0}, stops, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[int]bool, len(res.Order))
	for _, idx := range res.Order {
		if idx < 0 || idx >= len(stops) || seen[idx] {
			t.Fatalf("order is not a permutation: %v", res.Order)
		}
		seen[idx] = true
	}
	if len(seen) != len(stops) {
		t.Fatalf("order skipped stops: %v", res.Order)
	}
}

func TestPlanTieGoesToHigherPriority(t *testing.T) {
	stops := []Stop{
		{JobID: 1, Point: LatLng{Lat: 10, Lng: 10.1}, Priority: "Low"},
		{JobID: 2, Point: LatLng{Lat: 10, Lng: 9.9}, Priority: "High"},
	}
	res, err := Optimizer{}.Plan(context.Background(), LatLng{Lat: 10, Lng: 10}, stops, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order[0] != 1 {
		t.Fatalf("expected the high priority stop first on a distance tie, got %v", res.Order)
	}
}

func TestPlanFallsBackOnMissingCoordinates(t *testing.T) {
	stops := []Stop{
		{JobID: 1, Point: LatLng{Lat: 30.1, Lng: -97.0}},
		{JobID: 2, Point: LatLng{}}, // never geocoded
		{JobID: 3, Point: LatLng{Lat: 30.3, Lng: -97.0}},
	}
	res, err := Optimizer{}.Plan(context.Background(), LatLng{Lat: 30.0, Lng: -97.0}, stops, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fallback || res.Warning == "" {
		t.Fatalf("expected fallback with warning, got %+v", res)
	}
	for i, idx := range res.Order {
		if idx != i {
			t.Fatalf("expected identity order on fallback, got %v", res.Order)
		}
	}
}

type failingEstimator struct{}

func (failingEstimator) TravelMatrix(context.Context, []LatLng) (Matrix, error) {
	return Matrix{}, errors.New("matrix backend down")
}

func TestPlanFallsBackWhenEstimatorFails(t *testing.T) {
	o := Optimizer{Estimator: failingEstimator{}}
	res, err := o.Plan(context.Background(), LatLng{Lat: 30.0, Lng: -97.0}, lineStops(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fallback || res.Warning == "" {
		t.Fatalf("expected fallback with warning, got %+v", res)
	}
	// metrics still come from the haversine approximation
	if res.TotalDistanceKm <= 0 {
		t.Fatalf("expected positive distance from fallback metrics, got %f", res.TotalDistanceKm)
	}
}

func TestPlanTrafficFactorScalesTravelTime(t *testing.T) {
	start := LatLng{Lat: 30.0, Lng: -97.0}
	free, err := Optimizer{}.Plan(context.Background(), start, lineStops(), Options{Mode: ModeTime})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jammed, err := Optimizer{}.Plan(context.Background(), start, lineStops(), Options{Mode: ModeTime, TrafficFactor: 1.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := free.TravelMinutes * 1.5
	if diff := jammed.TravelMinutes - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected travel minutes %f, got %f", want, jammed.TravelMinutes)
	}
}

func TestPlanFuelCost(t *testing.T) {
	res, err := Optimizer{}.Plan(context.Background(), LatLng{Lat: 30.0, Lng: -97.0}, lineStops(), Options{FuelCostPerKm: 0.12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := res.TotalDistanceKm * 0.12
	if diff := res.FuelCost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected fuel cost %f, got %f", want, res.FuelCost)
	}
}

func TestTwoOptSwapReversesSegment(t *testing.T) {
	ord := []int{0, 1, 2, 3, 4}
	got := twoOptSwap(ord, 1, 3)
	want := []int{0, 3, 2, 1, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected swap result: %v", got)
		}
	}
}
