package service

import (
	"testing"

	"github.com/swifttiger/backend/internal/models"
)

func TestReorderJobsFollowsOrder(t *testing.T) {
	jobs := []models.Job{{ID: 10}, {ID: 20}, {ID: 30}}
	out := reorderJobs(jobs, []int{2, 0, 1})
	if len(out) != 3 || out[0].ID != 30 || out[1].ID != 10 || out[2].ID != 20 {
		t.Fatalf("unexpected reorder result: %+v", out)
	}
}

func TestBuildStopsCarriesCoordinates(t *testing.T) {
	lat, lng := 30.1, -97.2
	jobs := []models.Job{
		{ID: 1, Priority: models.JobPriorityHigh, ServiceType: models.ServiceTypeTraining, EstimatedMinutes: 45},
		{ID: 2, Priority: models.JobPriorityLow, EstimatedMinutes: 30},
	}
	coords := map[int64][2]*float64{1: {&lat, &lng}}

	stops := buildStops(jobs, coords)
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}
	if stops[0].Point.Lat != lat || stops[0].Point.Lng != lng {
		t.Fatalf("expected coordinates on stop 0, got %+v", stops[0].Point)
	}
	if len(stops[0].RequiredSkills) != 1 || stops[0].RequiredSkills[0] != models.ServiceTypeTraining {
		t.Fatalf("expected skill requirement on high priority stop, got %+v", stops[0].RequiredSkills)
	}
	if stops[1].Point.Lat != 0 || stops[1].Point.Lng != 0 {
		t.Fatalf("expected zero point for job without coordinates")
	}
	if stops[0].ServiceMinutes != 45 || stops[1].ServiceMinutes != 30 {
		t.Fatalf("unexpected service minutes: %+v", stops)
	}
}

func TestKeepTechniciansFiltersByID(t *testing.T) {
	techs := []models.User{{ID: 1}, {ID: 2}, {ID: 3}}
	out := keepTechnicians(techs, []int64{3, 1})
	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 3 {
		t.Fatalf("unexpected filter result: %+v", out)
	}
}
