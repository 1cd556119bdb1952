package worker

import (
	"testing"

	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/opt"
	"github.com/swifttiger/backend/internal/service"
)

func TestRouteStopsFromPlan(t *testing.T) {
	tp := service.TechnicianPlan{
		Technician: models.User{ID: 3, Name: "Sam"},
		Jobs: []models.Job{
			{ID: 21, Name: "first"},
			{ID: 34, Name: "second"},
			{ID: 8, Name: "third"},
		},
		Result: opt.Result{
			Order: []int{0, 1, 2},
			Legs: []opt.Leg{
				{DistanceKm: 1.5, Minutes: 4},
				{DistanceKm: 2.25, Minutes: 6},
				{DistanceKm: 0.5, Minutes: 2},
			},
		},
	}

	stops := RouteStopsFromPlan(tp)
	if len(stops) != 3 {
		t.Fatalf("stops = %d, want 3", len(stops))
	}
	for i, st := range stops {
		if st.Position != i+1 {
			t.Fatalf("stop %d position = %d, want %d", i, st.Position, i+1)
		}
	}
	if stops[0].JobID != 21 || stops[2].JobID != 8 {
		t.Fatalf("job order not preserved: %+v", stops)
	}
	if stops[1].LegDistanceKm != 2.25 || stops[1].LegMinutes != 6 {
		t.Fatalf("leg metrics not carried: %+v", stops[1])
	}
}

func TestRouteStopsFromPlanMoreJobsThanLegs(t *testing.T) {
	tp := service.TechnicianPlan{
		Jobs:   []models.Job{{ID: 1}, {ID: 2}},
		Result: opt.Result{Legs: []opt.Leg{{DistanceKm: 3, Minutes: 5}}},
	}

	stops := RouteStopsFromPlan(tp)
	if len(stops) != 2 {
		t.Fatalf("stops = %d, want 2", len(stops))
	}
	if stops[1].LegDistanceKm != 0 || stops[1].LegMinutes != 0 {
		t.Fatalf("missing leg should leave zero metrics: %+v", stops[1])
	}
}
