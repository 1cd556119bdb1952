package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData is returned when there is nothing to optimize.
var ErrInsufficientData = errors.New("route optimization requires at least one stop")

const (
	ModeDistance = "distance"
	ModeTime     = "time"
)

// Stop is one job site to visit.
type Stop struct {
	JobID          int64
	Point          LatLng
	Priority       string
	RequiredSkills []string
	ServiceMinutes int
}

type Options struct {
	Mode          string
	TrafficFactor float64 // multiplier on travel minutes, 1 = free flow
	TwoOptRounds  int
	FuelCostPerKm float64
}

type Leg struct {
	DistanceKm float64 `json:"distance_km"`
	Minutes    float64 `json:"minutes"`
}

// Result describes a visiting order for the input stops. Order is a
// permutation of input indices and Legs[i] is the drive into stop
// Order[i] from the previous point.
type Result struct {
	Order           []int   `json:"order"`
	Legs            []Leg   `json:"legs"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TravelMinutes   float64 `json:"travel_minutes"`
	ServiceMinutes  float64 `json:"service_minutes"`
	TotalMinutes    float64 `json:"total_minutes"`
	FuelCost        float64 `json:"fuel_cost"`
	Fallback        bool    `json:"fallback,omitempty"`
	Warning         string  `json:"warning,omitempty"`
}

type Optimizer struct {
	Estimator Estimator
}

// Plan orders the stops starting from start, minimizing the selected
// cost. When travel cost for any pair cannot be computed the stops are
// kept in the given order and Result.Warning explains why.
func (o Optimizer) Plan(ctx context.Context, start LatLng, stops []Stop, opts Options) (Result, error) {
	if len(stops) == 0 {
		return Result{}, ErrInsufficientData
	}

	points := make([]LatLng, 0, len(stops)+1)
	points = append(points, start)
	for _, st := range stops {
		points = append(points, st.Point)
	}

	est := o.Estimator
	if est == nil {
		est = HaversineEstimator{}
	}

	m, err := est.TravelMatrix(ctx, points)
	warning := ""
	if err != nil {
		warning = fmt.Sprintf("travel matrix unavailable (%v), keeping given stop order", err)
	} else if !m.usable() {
		warning = "travel cost missing for at least one stop pair, keeping given stop order"
	}
	if warning != "" {
		m, _ = HaversineEstimator{}.TravelMatrix(ctx, points)
		res := summarize(m, identityOrder(len(stops)), stops, opts)
		res.Fallback = true
		res.Warning = warning
		return res, nil
	}

	cost := m.DistanceKm
	if opts.Mode == ModeTime {
		cost = m.Minutes
	}
	order := nearestNeighborOrder(cost, stops)
	order = improveOrder2Opt(cost, order, opts.TwoOptRounds)
	return summarize(m, order, stops, opts), nil
}

// nearestNeighborOrder greedily visits the cheapest unvisited stop.
// cost is an (n+1)x(n+1) matrix with the start at index 0 and stop i
// at index i+1. Cost ties go to the higher-priority stop.
func nearestNeighborOrder(cost [][]float64, stops []Stop) []int {
	n := len(stops)
	visited := make([]bool, n)
	order := make([]int, 0, n)
	cur := 0
	for len(order) < n {
		best := -1
		bestCost := math.MaxFloat64
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			c := cost[cur][j+1]
			switch {
			case best < 0 || c+1e-9 < bestCost:
				best = j
				bestCost = c
			case math.Abs(c-bestCost) <= 1e-9 && priorityRank(stops[j].Priority) < priorityRank(stops[best].Priority):
				best = j
			}
		}
		order = append(order, best)
		visited[best] = true
		cur = best + 1
	}
	return order
}

// improveOrder2Opt applies 2-opt sweeps until no sweep improves the
// path or the round budget runs out.
func improveOrder2Opt(cost [][]float64, order []int, rounds int) []int {
	if rounds <= 0 {
		rounds = 8
	}
	best := append([]int(nil), order...)
	bestCost := pathCost(cost, best)
	n := len(order)
	for r := 0; r < rounds; r++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				if c := pathCost(cost, cand); c+1e-9 < bestCost {
					best = cand
					bestCost = c
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// pathCost sums the open path start -> order[0] -> ... -> order[n-1].
func pathCost(cost [][]float64, order []int) float64 {
	total := 0.0
	cur := 0
	for _, idx := range order {
		total += cost[cur][idx+1]
		cur = idx + 1
	}
	return total
}

func identityOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func priorityRank(p string) int {
	switch p {
	case "High":
		return 0
	case "Medium":
		return 1
	case "Low":
		return 2
	}
	return 3
}

func summarize(m Matrix, order []int, stops []Stop, opts Options) Result {
	traffic := opts.TrafficFactor
	if traffic <= 0 {
		traffic = 1
	}
	res := Result{Order: order, Legs: make([]Leg, 0, len(order))}
	cur := 0
	for _, idx := range order {
		d := m.DistanceKm[cur][idx+1]
		mins := m.Minutes[cur][idx+1]
		if math.IsNaN(d) {
			d = 0
		}
		if math.IsNaN(mins) {
			mins = 0
		}
		mins *= traffic
		res.Legs = append(res.Legs, Leg{DistanceKm: d, Minutes: mins})
		res.TotalDistanceKm += d
		res.TravelMinutes += mins
		res.ServiceMinutes += float64(stops[idx].ServiceMinutes)
		cur = idx + 1
	}
	res.TotalMinutes = res.TravelMinutes + res.ServiceMinutes
	res.FuelCost = res.TotalDistanceKm * opts.FuelCostPerKm
	return res
}
