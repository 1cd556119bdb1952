package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/swifttiger/backend/internal/models"
)

const customerColumns = `id, name, email, phone, street, city, state, zip, lat, lng, geocoded_at, created_at, updated_at`

func scanCustomer(row interface{ Scan(dest ...any) error }) (models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Street, &c.City, &c.State, &c.Zip,
		&c.Lat, &c.Lng, &c.GeocodedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) CreateCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO customers (name, email, phone, street, city, state, zip, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+customerColumns,
		c.Name, c.Email, c.Phone, c.Street, c.City, c.State, c.Zip, c.Lat, c.Lng)
	return scanCustomer(row)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (models.Customer, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (s *Store) ListCustomers(ctx context.Context, q string, limit, offset int) ([]models.Customer, int64, error) {
	limit, offset = clampPage(limit, offset)

	var args []any
	whereClause := ""
	if q != "" {
		args = append(args, "%"+q+"%")
		whereClause = " WHERE (name ILIKE $1 OR email ILIKE $1 OR city ILIKE $1 OR street ILIKE $1)"
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $1, email = $2, phone = $3, street = $4, city = $5, state = $6, zip = $7,
			lat = $8, lng = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING `+customerColumns,
		c.Name, c.Email, c.Phone, c.Street, c.City, c.State, c.Zip, c.Lat, c.Lng, c.ID)
	return scanCustomer(row)
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	var deleted int64
	return s.Pool.QueryRow(ctx, `DELETE FROM customers WHERE id = $1 RETURNING id`, id).Scan(&deleted)
}

// SetCustomerCoords records geocoder output without touching updated_at, so
// async geocoding never masks a concurrent edit.
func (s *Store) SetCustomerCoords(ctx context.Context, id int64, lat, lng float64) error {
	var updated int64
	return s.Pool.QueryRow(ctx, `
		UPDATE customers SET lat = $1, lng = $2, geocoded_at = NOW() WHERE id = $3 RETURNING id`,
		lat, lng, id).Scan(&updated)
}

func (s *Store) ListCustomersMissingCoords(ctx context.Context, limit int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE lat IS NULL OR lng IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertCustomers bulk-loads parsed import rows.
func (s *Store) InsertCustomers(ctx context.Context, customers []models.Customer) (int64, error) {
	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []any{c.Name, c.Email, c.Phone, c.Street, c.City, c.State, c.Zip, c.Lat, c.Lng})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"customers"},
		[]string{"name", "email", "phone", "street", "city", "state", "zip", "lat", "lng"},
		pgx.CopyFromRows(rows))
}
