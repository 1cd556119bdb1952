package realtime

import (
	"sort"
	"sync"
	"time"
)

// LatestLocation is the most recent ping seen from one technician.
type LatestLocation struct {
	TechnicianID int64     `json:"technician_id"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	AccuracyM    float64   `json:"accuracy_m"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// LocationCache keeps the latest ping per technician in memory so the
// live map can be served without touching the database.
type LocationCache struct {
	mu     sync.Mutex
	byTech map[int64]LatestLocation
}

func NewLocationCache() *LocationCache {
	return &LocationCache{byTech: make(map[int64]LatestLocation)}
}

func (lc *LocationCache) Upsert(loc LatestLocation) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if loc.RecordedAt.IsZero() {
		loc.RecordedAt = time.Now().UTC()
	}
	lc.byTech[loc.TechnicianID] = loc
}

func (lc *LocationCache) Get(technicianID int64) (LatestLocation, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	loc, ok := lc.byTech[technicianID]
	return loc, ok
}

// List returns every cached ping ordered by technician id.
func (lc *LocationCache) List() []LatestLocation {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]LatestLocation, 0, len(lc.byTech))
	for _, loc := range lc.byTech {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TechnicianID < out[j].TechnicianID })
	return out
}

// Evict drops pings older than maxAge and reports how many were removed.
func (lc *LocationCache) Evict(maxAge time.Duration) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	n := 0
	for id, loc := range lc.byTech {
		if loc.RecordedAt.Before(cutoff) {
			delete(lc.byTech, id)
			n++
		}
	}
	return n
}
