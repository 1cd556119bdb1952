package opt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// OSRMEstimator queries an OSRM-compatible /table endpoint for a
// road-network travel matrix. Distances come back in meters and
// durations in seconds.
type OSRMEstimator struct {
	BaseURL string
	Profile string
	Client  *http.Client
}

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

func (e OSRMEstimator) TravelMatrix(ctx context.Context, points []LatLng) (Matrix, error) {
	if e.Client == nil {
		e.Client = &http.Client{Timeout: 15 * time.Second}
	}
	profile := e.Profile
	if profile == "" {
		profile = "driving"
	}

	coords := make([]string, 0, len(points))
	for _, p := range points {
		coords = append(coords, fmt.Sprintf("%f,%f", p.Lng, p.Lat))
	}
	endpoint := fmt.Sprintf("%s/table/v1/%s/%s?annotations=duration,distance",
		strings.TrimRight(e.BaseURL, "/"), profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Matrix{}, err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return Matrix{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Matrix{}, fmt.Errorf("matrix service error: %s", resp.Status)
	}

	var body osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Matrix{}, err
	}
	if body.Code != "Ok" {
		return Matrix{}, fmt.Errorf("matrix service returned code %q", body.Code)
	}
	if len(body.Durations) != len(points) || len(body.Distances) != len(points) {
		return Matrix{}, fmt.Errorf("matrix service returned %d rows for %d points", len(body.Durations), len(points))
	}

	return tableToMatrix(body), nil
}

// tableToMatrix converts OSRM meters/seconds into km/minutes,
// translating null entries (unreachable pairs) to NaN.
func tableToMatrix(body osrmTableResponse) Matrix {
	n := len(body.Durations)
	m := Matrix{
		DistanceKm: make([][]float64, n),
		Minutes:    make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		m.DistanceKm[i] = make([]float64, n)
		m.Minutes[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if body.Distances[i][j] == nil || body.Durations[i][j] == nil {
				m.DistanceKm[i][j] = math.NaN()
				m.Minutes[i][j] = math.NaN()
				continue
			}
			m.DistanceKm[i][j] = *body.Distances[i][j] / 1000
			m.Minutes[i][j] = *body.Durations[i][j] / 60
		}
	}
	return m
}
