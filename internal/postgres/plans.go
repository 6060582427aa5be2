package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
)

type planRepository struct {
	pool *pgxpool.Pool
}

// Save writes the plan header, its slots and its stop positions in one
// transaction. Slot and route rows go through a single pgx.Batch.
func (r *planRepository) Save(ctx context.Context, p *models.SavedPlan) error {
	options, err := json.Marshal(p.Options)
	if err != nil {
		return fmt.Errorf("failed to encode plan options: %w", err)
	}
	summary, err := json.Marshal(p.Result.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode plan summary: %w", err)
	}
	excluded, err := json.Marshal(p.Result.Excluded)
	if err != nil {
		return fmt.Errorf("failed to encode plan exclusions: %w", err)
	}

	var parentID *string
	if p.ParentID != "" {
		parentID = &p.ParentID
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO plans (id, parent_id, day, drivers, options_json, summary_json, excluded_json, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, p.ID, parentID, string(p.Day), len(p.Result.Routes),
			string(options), string(summary), string(excluded), p.CreatedAt); err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}

		batch := &pgx.Batch{}
		for _, s := range database.SlotRows(&p.Result) {
			m := s.Metrics
			batch.Queue(`
				INSERT INTO plan_slots
				(plan_id, slot_kind, slot_index, color, label, distance_miles, stop_count, minutes, centroid_lat, centroid_lng)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, p.ID, database.SlotKind(s.Driver.Slot), s.Driver.Slot.Index(), s.Driver.Color, s.Driver.Label,
				m.DistanceMiles, m.Stops, m.Minutes, m.Centroid.Lat, m.Centroid.Lng)
		}
		for _, row := range database.FlattenRoutes(&p.Result) {
			batch.Queue(`
				INSERT INTO plan_routes (plan_id, slot_kind, slot_index, position, stop_id)
				VALUES ($1, $2, $3, $4, $5)
			`, p.ID, database.SlotKind(row.Slot), row.Slot.Index(), row.Position, row.StopID)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		return br.Close()
	})
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*models.SavedPlan, error) {
	var p models.SavedPlan
	var parentID *string
	var day, options, summary, excluded string

	err := r.pool.QueryRow(ctx, `
		SELECT id, parent_id, day, options_json, summary_json, excluded_json, created_at
		FROM plans WHERE id = $1
	`, id).Scan(&p.ID, &parentID, &day, &options, &summary, &excluded, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if parentID != nil {
		p.ParentID = *parentID
	}
	p.Day = models.Weekday(day)

	if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
		return nil, fmt.Errorf("failed to decode plan options: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &p.Result.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode plan summary: %w", err)
	}
	if err := json.Unmarshal([]byte(excluded), &p.Result.Excluded); err != nil {
		return nil, fmt.Errorf("failed to decode plan exclusions: %w", err)
	}
	if p.Result.Excluded == nil {
		p.Result.Excluded = []models.Exclusion{}
	}

	slots, err := r.slots(ctx, id)
	if err != nil {
		return nil, err
	}
	stops, err := r.routeRows(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Result.Routes, p.Result.Outliers = database.AssembleRoutes(slots, stops)

	return &p, nil
}

func (r *planRepository) slots(ctx context.Context, planID string) ([]database.SlotRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_kind, slot_index, color, label, distance_miles, stop_count, minutes, centroid_lat, centroid_lng
		FROM plan_slots WHERE plan_id = $1
		ORDER BY slot_kind, slot_index
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (database.SlotRow, error) {
		var s database.SlotRow
		var kind string
		var index int
		m := &s.Metrics
		err := row.Scan(&kind, &index, &s.Driver.Color, &s.Driver.Label,
			&m.DistanceMiles, &m.Stops, &m.Minutes, &m.Centroid.Lat, &m.Centroid.Lng)
		s.Driver.Slot = database.ParseSlot(kind, index)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan slot: %w", err)
	}
	return slots, nil
}

func (r *planRepository) routeRows(ctx context.Context, planID string) ([]database.RouteRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_kind, slot_index, position, stop_id
		FROM plan_routes WHERE plan_id = $1
		ORDER BY slot_kind, slot_index, position
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan routes: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (database.RouteRow, error) {
		var rr database.RouteRow
		var kind string
		var index int
		err := row.Scan(&kind, &index, &rr.Position, &rr.StopID)
		rr.Slot = database.ParseSlot(kind, index)
		return rr, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan route: %w", err)
	}
	return out, nil
}

func (r *planRepository) List(ctx context.Context, limit, offset int) ([]models.PlanListItem, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM plans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, parent_id, day, drivers, summary_json, created_at
		FROM plans
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query plans: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PlanListItem, error) {
		var item models.PlanListItem
		var parentID *string
		var day, summary string
		if err := row.Scan(&item.ID, &parentID, &day, &item.Drivers, &summary, &item.CreatedAt); err != nil {
			return item, err
		}
		if parentID != nil {
			item.ParentID = *parentID
		}
		item.Day = models.Weekday(day)
		if err := json.Unmarshal([]byte(summary), &item.Summary); err != nil {
			return item, fmt.Errorf("decode summary: %w", err)
		}
		return item, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan plan: %w", err)
	}
	if items == nil {
		items = []models.PlanListItem{}
	}
	return items, total, nil
}

func (r *planRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return expectOneRow(tag, "plan", id)
}
