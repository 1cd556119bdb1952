package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/swifttiger/backend/internal/models"
)

// SaveRoute persists a route and its ordered stops in one transaction.
// Re-saving a technician/date pair replaces the previous plan.
func (s *Store) SaveRoute(ctx context.Context, r models.Route, stops []models.RouteStop) (models.Route, error) {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO routes (technician_id, route_date, status, mode, total_distance_km, total_minutes, fuel_cost, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (technician_id, route_date) DO UPDATE SET
				status = EXCLUDED.status,
				mode = EXCLUDED.mode,
				total_distance_km = EXCLUDED.total_distance_km,
				total_minutes = EXCLUDED.total_minutes,
				fuel_cost = EXCLUDED.fuel_cost,
				created_by = EXCLUDED.created_by,
				created_at = NOW()
			RETURNING id, created_at`,
			r.TechnicianID, r.RouteDate, r.Status, r.Mode, r.TotalDistanceKm, r.TotalMinutes, r.FuelCost, r.CreatedBy)
		if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM route_stops WHERE route_id = $1`, r.ID); err != nil {
			return err
		}

		rows := make([][]any, 0, len(stops))
		for i := range stops {
			stops[i].RouteID = r.ID
			rows = append(rows, []any{r.ID, stops[i].JobID, stops[i].Position, stops[i].LegDistanceKm, stops[i].LegMinutes})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"route_stops"},
			[]string{"route_id", "job_id", "position", "leg_distance_km", "leg_minutes"},
			pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return models.Route{}, err
	}
	r.Stops = stops
	return r, nil
}

func (s *Store) GetRoute(ctx context.Context, id int64) (models.Route, error) {
	var r models.Route
	err := s.Pool.QueryRow(ctx, `
		SELECT r.id, r.technician_id, r.route_date, r.status, r.mode,
			r.total_distance_km, r.total_minutes, r.fuel_cost, r.created_by, r.created_at, u.name
		FROM routes r
		JOIN users u ON u.id = r.technician_id
		WHERE r.id = $1`, id).
		Scan(&r.ID, &r.TechnicianID, &r.RouteDate, &r.Status, &r.Mode,
			&r.TotalDistanceKm, &r.TotalMinutes, &r.FuelCost, &r.CreatedBy, &r.CreatedAt, &r.TechnicianName)
	if err != nil {
		return models.Route{}, err
	}
	stops, err := s.listRouteStops(ctx, []int64{r.ID})
	if err != nil {
		return models.Route{}, err
	}
	r.Stops = stops[r.ID]
	return r, nil
}

func (s *Store) ListRouteAssignments(ctx context.Context, date *time.Time, technicianID *int64) ([]models.Route, error) {
	var args []any
	var wheres []string
	if date != nil {
		args = append(args, *date)
		wheres = append(wheres, fmt.Sprintf("r.route_date = $%d", len(args)))
	}
	if technicianID != nil {
		args = append(args, *technicianID)
		wheres = append(wheres, fmt.Sprintf("r.technician_id = $%d", len(args)))
	}
	query := `
		SELECT r.id, r.technician_id, r.route_date, r.status, r.mode,
			r.total_distance_km, r.total_minutes, r.fuel_cost, r.created_by, r.created_at, u.name
		FROM routes r
		JOIN users u ON u.id = r.technician_id`
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY r.route_date DESC, r.technician_id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Route
	var ids []int64
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.ID, &r.TechnicianID, &r.RouteDate, &r.Status, &r.Mode,
			&r.TotalDistanceKm, &r.TotalMinutes, &r.FuelCost, &r.CreatedBy, &r.CreatedAt, &r.TechnicianName); err != nil {
			return nil, err
		}
		out = append(out, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stops, err := s.listRouteStops(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Stops = stops[out[i].ID]
	}
	return out, nil
}

func (s *Store) DeleteRoute(ctx context.Context, id int64) error {
	var deleted int64
	return s.Pool.QueryRow(ctx, `DELETE FROM routes WHERE id = $1 RETURNING id`, id).Scan(&deleted)
}

func (s *Store) listRouteStops(ctx context.Context, routeIDs []int64) (map[int64][]models.RouteStop, error) {
	out := map[int64][]models.RouteStop{}
	if len(routeIDs) == 0 {
		return out, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT rs.id, rs.route_id, rs.job_id, rs.position, rs.leg_distance_km, rs.leg_minutes,
			j.name, c.name
		FROM route_stops rs
		JOIN jobs j ON j.id = rs.job_id
		JOIN customers c ON c.id = j.customer_id
		WHERE rs.route_id = ANY($1)
		ORDER BY rs.route_id, rs.position ASC`, routeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st models.RouteStop
		if err := rows.Scan(&st.ID, &st.RouteID, &st.JobID, &st.Position, &st.LegDistanceKm, &st.LegMinutes,
			&st.JobName, &st.CustomerName); err != nil {
			return nil, err
		}
		out[st.RouteID] = append(out[st.RouteID], st)
	}
	return out, rows.Err()
}
