package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
)

type planRepository struct {
	store *Store
}

func (r *planRepository) Save(ctx context.Context, p *models.SavedPlan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var parentID *string
	if p.ParentID != "" {
		parentID = &p.ParentID
	}

	planQuery := `INSERT INTO plans (id, parent_id, day, drivers, options_json, summary_json, excluded_json, created_at)
	              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, planQuery,
		p.ID, parentID, string(p.Day), len(p.Result.Routes),
		string(options), string(summary), string(excluded), p.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	slotQuery := `INSERT INTO plan_slots
	              (plan_id, slot_kind, slot_index, color, label, distance_miles, stop_count, minutes, centroid_lat, centroid_lng)
	              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, s := range database.SlotRows(&p.Result) {
		m := s.Metrics
		if _, err := tx.ExecContext(ctx, slotQuery,
			p.ID, database.SlotKind(s.Driver.Slot), s.Driver.Slot.Index(), s.Driver.Color, s.Driver.Label,
			m.DistanceMiles, m.Stops, m.Minutes, m.Centroid.Lat, m.Centroid.Lng,
		); err != nil {
			return fmt.Errorf("failed to create plan slot: %w", err)
		}
	}

	routeQuery := `INSERT INTO plan_routes (plan_id, slot_kind, slot_index, position, stop_id)
	               VALUES (?, ?, ?, ?, ?)`
	for _, row := range database.FlattenRoutes(&p.Result) {
		if _, err := tx.ExecContext(ctx, routeQuery,
			p.ID, database.SlotKind(row.Slot), row.Slot.Index(), row.Position, row.StopID,
		); err != nil {
			return fmt.Errorf("failed to create plan route: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*models.SavedPlan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	planQuery := `SELECT id, parent_id, day, options_json, summary_json, excluded_json, created_at
	              FROM plans WHERE id = ?`

	var p models.SavedPlan
	var parentID sql.NullString
	var day, options, summary, excluded string
	err := r.store.db.QueryRowContext(ctx, planQuery, id).Scan(
		&p.ID, &parentID, &day, &options, &summary, &excluded, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p.ParentID = parentID.String
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
	query := `SELECT slot_kind, slot_index, color, label, distance_miles, stop_count, minutes, centroid_lat, centroid_lng
	          FROM plan_slots WHERE plan_id = ?
	          ORDER BY slot_kind, slot_index`

	rows, err := r.store.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan slots: %w", err)
	}
	defer rows.Close()

	var slots []database.SlotRow
	for rows.Next() {
		var s database.SlotRow
		var kind string
		var index int
		m := &s.Metrics
		if err := rows.Scan(&kind, &index, &s.Driver.Color, &s.Driver.Label,
			&m.DistanceMiles, &m.Stops, &m.Minutes, &m.Centroid.Lat, &m.Centroid.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan plan slot: %w", err)
		}
		s.Driver.Slot = database.ParseSlot(kind, index)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *planRepository) routeRows(ctx context.Context, planID string) ([]database.RouteRow, error) {
	query := `SELECT slot_kind, slot_index, position, stop_id
	          FROM plan_routes WHERE plan_id = ?
	          ORDER BY slot_kind, slot_index, position`

	rows, err := r.store.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan routes: %w", err)
	}
	defer rows.Close()

	var out []database.RouteRow
	for rows.Next() {
		var row database.RouteRow
		var kind string
		var index int
		if err := rows.Scan(&kind, &index, &row.Position, &row.StopID); err != nil {
			return nil, fmt.Errorf("failed to scan plan route: %w", err)
		}
		row.Slot = database.ParseSlot(kind, index)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *planRepository) List(ctx context.Context, limit, offset int) ([]models.PlanListItem, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	query := `SELECT id, parent_id, day, drivers, summary_json, created_at
	          FROM plans
	          ORDER BY created_at DESC, id
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	items := []models.PlanListItem{}
	for rows.Next() {
		var item models.PlanListItem
		var parentID sql.NullString
		var day, summary string
		if err := rows.Scan(&item.ID, &parentID, &day, &item.Drivers, &summary, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan: %w", err)
		}
		item.ParentID = parentID.String
		item.Day = models.Weekday(day)
		if err := json.Unmarshal([]byte(summary), &item.Summary); err != nil {
			return nil, 0, fmt.Errorf("failed to decode plan summary: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating plans: %w", err)
	}
	return items, total, nil
}

func (r *planRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return expectOneRow(result, "plan", id)
}
