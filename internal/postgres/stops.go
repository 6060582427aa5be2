package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
)

type stopRepository struct {
	pool *pgxpool.Pool
}

const stopColumns = `id, name, address, city, lat, lng, days, active, created_at, updated_at`

func scanStop(row pgx.Row) (models.Stop, error) {
	var s models.Stop
	var days string
	if err := row.Scan(&s.ID, &s.Name, &s.Address, &s.City, &s.Lat, &s.Lng, &days, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	if s.Lat == nil || s.Lng == nil {
		s.Lat, s.Lng = nil, nil
	}
	s.Days = database.DecodeDays(days)
	return s, nil
}

func (r *stopRepository) query(ctx context.Context, sql string, args ...any) ([]models.Stop, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	stops, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Stop, error) {
		return scanStop(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stop: %w", err)
	}
	if stops == nil {
		stops = []models.Stop{}
	}
	return stops, nil
}

func (r *stopRepository) List(ctx context.Context, search string) ([]models.Stop, error) {
	if search == "" {
		return r.query(ctx, `SELECT `+stopColumns+` FROM stops ORDER BY id`)
	}
	like := "%" + search + "%"
	return r.query(ctx, `SELECT `+stopColumns+` FROM stops
		WHERE name ILIKE $1 OR address ILIKE $1 OR city ILIKE $1
		ORDER BY id`, like)
}

func (r *stopRepository) GetByID(ctx context.Context, id int64) (*models.Stop, error) {
	s, err := scanStop(r.pool.QueryRow(ctx, `SELECT `+stopColumns+` FROM stops WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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
	return r.query(ctx, `SELECT `+stopColumns+` FROM stops WHERE id = ANY($1) ORDER BY id`, ids)
}

func (r *stopRepository) ListUngeocoded(ctx context.Context) ([]models.Stop, error) {
	return r.query(ctx, `SELECT `+stopColumns+` FROM stops WHERE lat IS NULL OR lng IS NULL ORDER BY id`)
}

func (r *stopRepository) Create(ctx context.Context, s *models.Stop) (*models.Stop, error) {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	err := r.pool.QueryRow(ctx, `
		INSERT INTO stops (name, address, city, lat, lng, days, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, s.Name, s.Address, s.City, s.Lat, s.Lng, database.EncodeDays(s.Days), s.Active, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create stop: %w", err)
	}
	return s, nil
}

func (r *stopRepository) Update(ctx context.Context, s *models.Stop) (*models.Stop, error) {
	s.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE stops
		SET name = $1, address = $2, city = $3, lat = $4, lng = $5, days = $6, active = $7, updated_at = $8
		WHERE id = $9
	`, s.Name, s.Address, s.City, s.Lat, s.Lng, database.EncodeDays(s.Days), s.Active, s.UpdatedAt, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update stop: %w", err)
	}
	if err := expectOneRow(tag, "stop", s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *stopRepository) SetCoordinates(ctx context.Context, id int64, c models.Coordinates) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stops SET lat = $1, lng = $2, updated_at = $3 WHERE id = $4`,
		c.Lat, c.Lng, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set stop coordinates: %w", err)
	}
	return expectOneRow(tag, "stop", id)
}

func (r *stopRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stops WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete stop: %w", err)
	}
	return expectOneRow(tag, "stop", id)
}

func expectOneRow(tag pgconn.CommandTag, entity string, id any) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, database.ErrNotFound)
	}
	return nil
}
