package db

import (
	"context"

	"github.com/swifttiger/backend/internal/models"
)

// UpsertTechnicianLocation keeps only the latest ping per technician.
func (s *Store) UpsertTechnicianLocation(ctx context.Context, loc models.TechnicianLocation) (models.TechnicianLocation, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO technician_locations (technician_id, latitude, longitude, accuracy_m, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (technician_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy_m = EXCLUDED.accuracy_m,
			recorded_at = NOW()
		RETURNING id, recorded_at`,
		loc.TechnicianID, loc.Latitude, loc.Longitude, loc.AccuracyM).
		Scan(&loc.ID, &loc.RecordedAt)
	return loc, err
}

// ListTechnicianLocations returns the latest known position of every
// active technician that has reported at least once.
func (s *Store) ListTechnicianLocations(ctx context.Context) ([]models.TechnicianLocation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT tl.id, tl.technician_id, tl.latitude, tl.longitude, tl.accuracy_m, tl.recorded_at, u.name
		FROM technician_locations tl
		JOIN users u ON u.id = tl.technician_id
		WHERE u.is_active
		ORDER BY u.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TechnicianLocation
	for rows.Next() {
		var loc models.TechnicianLocation
		if err := rows.Scan(&loc.ID, &loc.TechnicianID, &loc.Latitude, &loc.Longitude,
			&loc.AccuracyM, &loc.RecordedAt, &loc.TechnicianName); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}
