package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/opt"
)

// Non-empty traffic awareness slows every leg by the same factor.
const trafficFactor = 1.25

type PlannerService struct {
	Store          *db.Store
	Optimizer      opt.Optimizer
	Logger         zerolog.Logger
	MaxJobsPerTech int
	FuelCostPerKm  float64
}

type PlanOptions struct {
	Date         time.Time
	Mode         string
	TrafficAware bool
	Start        *opt.LatLng
	// TechnicianIDs restricts planning to a subset of the active
	// technicians. Empty means all of them.
	TechnicianIDs []int64
}

type TechnicianPlan struct {
	Technician models.User  `json:"technician"`
	Jobs       []models.Job `json:"jobs"`
	Result     opt.Result   `json:"result"`
}

type UnassignedJob struct {
	Job        models.Job `json:"job"`
	ReasonCode string     `json:"reason_code"`
	ReasonText string     `json:"reason_text"`
}

type DayPlan struct {
	Date       time.Time        `json:"date"`
	Routes     []TechnicianPlan `json:"routes"`
	Unassigned []UnassignedJob  `json:"unassigned"`
	Events     []map[string]any `json:"events"`
	Counts     map[string]any   `json:"counts"`
}

type OptimizedRoute struct {
	Jobs   []models.Job `json:"jobs"`
	Result opt.Result   `json:"result"`
}

// PlanDay partitions the unassigned jobs of a date across active
// technicians and orders each technician's stops.
func (s *PlannerService) PlanDay(ctx context.Context, o PlanOptions) (DayPlan, error) {
	jobs, err := s.Store.ListUnassignedJobsForDate(ctx, o.Date)
	if err != nil {
		return DayPlan{}, err
	}
	techs, err := s.Store.ListTechnicians(ctx)
	if err != nil {
		return DayPlan{}, err
	}
	if len(o.TechnicianIDs) > 0 {
		techs = keepTechnicians(techs, o.TechnicianIDs)
	}
	loads, err := s.Store.CountOpenJobsByTechnician(ctx, o.Date)
	if err != nil {
		return DayPlan{}, err
	}
	techLoads := applyLoads(techs, loads)

	coords := map[int64][2]*float64{}
	if len(jobs) > 0 {
		ids := make([]int64, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		if _, coords, err = s.Store.ListJobsByIDs(ctx, ids); err != nil {
			return DayPlan{}, err
		}
	}

	plan := DayPlan{Date: o.Date, Counts: map[string]any{}}
	plan.Events = append(plan.Events, map[string]any{
		"type":        "collection",
		"message":     "Jobs ready for planning",
		"jobs":        len(jobs),
		"technicians": len(techs),
		"time":        time.Now().UTC(),
	})

	perTech := map[int64][]models.Job{}
	topUnassignedReasons := map[string]int{}
	for _, job := range jobs {
		elig := FilterEligibleTechnicians(techLoads, job, s.MaxJobsPerTech)
		if len(elig.Eligible) == 0 {
			plan.Unassigned = append(plan.Unassigned, UnassignedJob{
				Job:        job,
				ReasonCode: elig.ReasonCode,
				ReasonText: elig.ReasonText,
			})
			topUnassignedReasons[elig.ReasonCode]++
			continue
		}
		picked, _ := PickTechnician(strconv.FormatInt(job.ID, 10), elig.Eligible)
		perTech[picked.Tech.ID] = append(perTech[picked.Tech.ID], job)
		for i := range techLoads {
			if techLoads[i].Tech.ID == picked.Tech.ID {
				techLoads[i].Load++
			}
		}
	}

	plan.Events = append(plan.Events, map[string]any{
		"type":       "assignment",
		"assigned":   len(jobs) - len(plan.Unassigned),
		"unassigned": len(plan.Unassigned),
		"time":       time.Now().UTC(),
	})

	lastKnown := s.latestLocations(ctx)

	fallbacks := 0
	var totalKm, totalMinutes, totalFuel float64
	for _, tl := range techLoads {
		assigned := perTech[tl.Tech.ID]
		if len(assigned) == 0 {
			continue
		}
		stops := buildStops(assigned, coords)
		start := s.startPoint(o, tl.Tech.ID, lastKnown, stops)
		res, err := s.Optimizer.Plan(ctx, start, stops, s.planOptions(o))
		if err != nil {
			return DayPlan{}, err
		}
		if res.Fallback {
			fallbacks++
			s.Logger.Warn().
				Int64("technician_id", tl.Tech.ID).
				Str("warning", res.Warning).
				Msg("route kept in given stop order")
		}
		plan.Routes = append(plan.Routes, TechnicianPlan{
			Technician: tl.Tech,
			Jobs:       reorderJobs(assigned, res.Order),
			Result:     res,
		})
		totalKm += res.TotalDistanceKm
		totalMinutes += res.TotalMinutes
		totalFuel += res.FuelCost
	}
	sort.Slice(plan.Routes, func(i, j int) bool {
		return plan.Routes[i].Technician.ID < plan.Routes[j].Technician.ID
	})

	plan.Events = append(plan.Events, map[string]any{
		"type":          "optimization",
		"routes":        len(plan.Routes),
		"fallbacks":     fallbacks,
		"total_km":      totalKm,
		"total_minutes": totalMinutes,
		"time":          time.Now().UTC(),
	})

	plan.Counts["jobs_considered"] = len(jobs)
	plan.Counts["assigned"] = len(jobs) - len(plan.Unassigned)
	plan.Counts["unassigned"] = len(plan.Unassigned)
	plan.Counts["routes"] = len(plan.Routes)
	plan.Counts["optimizer_fallbacks"] = fallbacks
	plan.Counts["total_distance_km"] = totalKm
	plan.Counts["total_minutes"] = totalMinutes
	plan.Counts["total_fuel_cost"] = totalFuel
	plan.Counts["top_unassigned_reasons"] = topUnassignedReasons
	return plan, nil
}

// OptimizeJobs orders one set of jobs for a single route. The caller's
// job order is preserved as the identity order when the optimizer has
// to fall back.
func (s *PlannerService) OptimizeJobs(ctx context.Context, jobIDs []int64, o PlanOptions) (OptimizedRoute, error) {
	if len(jobIDs) == 0 {
		return OptimizedRoute{}, opt.ErrInsufficientData
	}
	jobs, coords, err := s.Store.ListJobsByIDs(ctx, jobIDs)
	if err != nil {
		return OptimizedRoute{}, err
	}
	byID := make(map[int64]models.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	ordered := make([]models.Job, 0, len(jobIDs))
	for _, id := range jobIDs {
		if j, ok := byID[id]; ok {
			ordered = append(ordered, j)
		}
	}

	stops := buildStops(ordered, coords)
	start := s.startPoint(o, 0, nil, stops)
	res, err := s.Optimizer.Plan(ctx, start, stops, s.planOptions(o))
	if err != nil {
		return OptimizedRoute{}, err
	}
	if res.Fallback {
		s.Logger.Warn().Str("warning", res.Warning).Msg("route kept in given stop order")
	}
	return OptimizedRoute{Jobs: reorderJobs(ordered, res.Order), Result: res}, nil
}

func (s *PlannerService) planOptions(o PlanOptions) opt.Options {
	factor := 1.0
	if o.TrafficAware {
		factor = trafficFactor
	}
	return opt.Options{
		Mode:          o.Mode,
		TrafficFactor: factor,
		FuelCostPerKm: s.FuelCostPerKm,
	}
}

// startPoint resolves the route origin: an explicit start wins, then
// the technician's last reported position, then the first geocoded
// stop.
func (s *PlannerService) startPoint(o PlanOptions, technicianID int64, lastKnown map[int64]opt.LatLng, stops []opt.Stop) opt.LatLng {
	if o.Start != nil && opt.ValidLatLng(*o.Start) {
		return *o.Start
	}
	if p, ok := lastKnown[technicianID]; ok && opt.ValidLatLng(p) {
		return p
	}
	for _, st := range stops {
		if opt.ValidLatLng(st.Point) {
			return st.Point
		}
	}
	return opt.LatLng{}
}

func (s *PlannerService) latestLocations(ctx context.Context) map[int64]opt.LatLng {
	out := map[int64]opt.LatLng{}
	locs, err := s.Store.ListTechnicianLocations(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("technician locations unavailable for route start")
		return out
	}
	for _, l := range locs {
		out[l.TechnicianID] = opt.LatLng{Lat: l.Latitude, Lng: l.Longitude}
	}
	return out
}

func buildStops(jobs []models.Job, coords map[int64][2]*float64) []opt.Stop {
	stops := make([]opt.Stop, 0, len(jobs))
	for _, j := range jobs {
		st := opt.Stop{
			JobID:          j.ID,
			Priority:       j.Priority,
			ServiceMinutes: j.EstimatedMinutes,
		}
		if skill, ok := requiredSkill(j); ok {
			st.RequiredSkills = []string{skill}
		}
		if c, ok := coords[j.ID]; ok && c[0] != nil && c[1] != nil {
			st.Point = opt.LatLng{Lat: *c[0], Lng: *c[1]}
		}
		stops = append(stops, st)
	}
	return stops
}

func reorderJobs(jobs []models.Job, order []int) []models.Job {
	out := make([]models.Job, 0, len(order))
	for _, idx := range order {
		if idx >= 0 && idx < len(jobs) {
			out = append(out, jobs[idx])
		}
	}
	return out
}

func applyLoads(techs []models.User, loads map[int64]int) []TechnicianLoad {
	out := make([]TechnicianLoad, 0, len(techs))
	for _, t := range techs {
		out = append(out, TechnicianLoad{Tech: t, Load: loads[t.ID]})
	}
	return out
}

func keepTechnicians(techs []models.User, ids []int64) []models.User {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.User, 0, len(techs))
	for _, t := range techs {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
