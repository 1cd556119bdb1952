package opt

import (
	"context"
	"math"

	"github.com/swifttiger/backend/internal/utils"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Matrix holds pairwise travel cost between points. Entry [i][j] is the
// cost of driving from point i to point j. Unreachable pairs are NaN.
type Matrix struct {
	DistanceKm [][]float64
	Minutes    [][]float64
}

// Estimator produces a travel cost matrix for a set of points.
type Estimator interface {
	TravelMatrix(ctx context.Context, points []LatLng) (Matrix, error)
}

// HaversineEstimator approximates travel cost from great-circle
// distance at a flat average speed. It never fails for valid
// coordinates, which makes it the fallback when a road-network
// estimator is unavailable.
type HaversineEstimator struct {
	AvgSpeedKmh float64
}

const defaultAvgSpeedKmh = 40.0

func (e HaversineEstimator) TravelMatrix(_ context.Context, points []LatLng) (Matrix, error) {
	speed := e.AvgSpeedKmh
	if speed <= 0 {
		speed = defaultAvgSpeedKmh
	}
	n := len(points)
	m := Matrix{
		DistanceKm: make([][]float64, n),
		Minutes:    make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		m.DistanceKm[i] = make([]float64, n)
		m.Minutes[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if !ValidLatLng(points[i]) || !ValidLatLng(points[j]) {
				m.DistanceKm[i][j] = math.NaN()
				m.Minutes[i][j] = math.NaN()
				continue
			}
			d := utils.HaversineKm(points[i].Lat, points[i].Lng, points[j].Lat, points[j].Lng)
			m.DistanceKm[i][j] = d
			m.Minutes[i][j] = d / speed * 60
		}
	}
	return m, nil
}

// ValidLatLng reports whether a point carries plausible coordinates.
// The zero value is rejected: it almost always means "not geocoded".
func ValidLatLng(p LatLng) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (m Matrix) usable() bool {
	for i := range m.DistanceKm {
		for j := range m.DistanceKm[i] {
			if i == j {
				continue
			}
			if math.IsNaN(m.DistanceKm[i][j]) || m.DistanceKm[i][j] < 0 {
				return false
			}
			if math.IsNaN(m.Minutes[i][j]) || m.Minutes[i][j] < 0 {
				return false
			}
		}
	}
	return true
}
