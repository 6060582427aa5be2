package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
)

type stopRepository struct {
	store *Store
}

const stopColumns = `id, name, address, city, lat, lng, days, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStop(row rowScanner) (models.Stop, error) {
	var s models.Stop
	var lat, lng sql.NullFloat64
	var days string
	if err := row.Scan(&s.ID, &s.Name, &s.Address, &s.City, &lat, &lng, &days, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	if lat.Valid && lng.Valid {
		s.SetCoords(models.Coordinates{Lat: lat.Float64, Lng: lng.Float64})
	}
	s.Days = database.DecodeDays(days)
	return s, nil
}

func scanStops(rows *sql.Rows) ([]models.Stop, error) {
	stops := []models.Stop{}
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stops: %w", err)
	}
	return stops, nil
}

func (r *stopRepository) List(ctx context.Context, search string) ([]models.Stop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var rows *sql.Rows
	var err error

	if search != "" {
		query := `SELECT ` + stopColumns + ` FROM stops
		          WHERE name LIKE ? OR address LIKE ? OR city LIKE ?
		          ORDER BY id`
		like := "%" + search + "%"
		rows, err = r.store.db.QueryContext(ctx, query, like, like, like)
	} else {
		query := `SELECT ` + stopColumns + ` FROM stops ORDER BY id`
		rows, err = r.store.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	return scanStops(rows)
}

func (r *stopRepository) GetByID(ctx context.Context, id int64) (*models.Stop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + stopColumns + ` FROM stops WHERE id = ?`
	s, err := scanStop(r.store.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stop: %w", err)
	}
	return &s, nil
}

func (r *stopRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Stop, error) {
	if len(ids) == 0 {
		return []models.Stop{}, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM stops WHERE id IN (%s) ORDER BY id`,
		stopColumns, strings.Join(placeholders, ","))

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops by IDs: %w", err)
	}
	defer rows.Close()

	return scanStops(rows)
}

func (r *stopRepository) ListUngeocoded(ctx context.Context) ([]models.Stop, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + stopColumns + ` FROM stops WHERE lat IS NULL OR lng IS NULL ORDER BY id`
	rows, err := r.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ungeocoded stops: %w", err)
	}
	defer rows.Close()

	return scanStops(rows)
}

func (r *stopRepository) Create(ctx context.Context, s *models.Stop) (*models.Stop, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `INSERT INTO stops (name, address, city, lat, lng, days, active, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.store.db.ExecContext(ctx, query,
		s.Name, s.Address, s.City, s.Lat, s.Lng, database.EncodeDays(s.Days), s.Active, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stop: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id

	return s, nil
}

func (r *stopRepository) Update(ctx context.Context, s *models.Stop) (*models.Stop, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s.UpdatedAt = time.Now()

	query := `UPDATE stops
	          SET name = ?, address = ?, city = ?, lat = ?, lng = ?, days = ?, active = ?, updated_at = ?
	          WHERE id = ?`

	result, err := r.store.db.ExecContext(ctx, query,
		s.Name, s.Address, s.City, s.Lat, s.Lng, database.EncodeDays(s.Days), s.Active, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update stop: %w", err)
	}

	if err := expectOneRow(result, "stop", s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *stopRepository) SetCoordinates(ctx context.Context, id int64, c models.Coordinates) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `UPDATE stops SET lat = ?, lng = ?, updated_at = ? WHERE id = ?`
	result, err := r.store.db.ExecContext(ctx, query, c.Lat, c.Lng, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set stop coordinates: %w", err)
	}
	return expectOneRow(result, "stop", id)
}

func (r *stopRepository) Delete(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM stops WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete stop: %w", err)
	}
	return expectOneRow(result, "stop", id)
}

func expectOneRow(result sql.Result, entity string, id any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, database.ErrNotFound)
	}
	return nil
}
