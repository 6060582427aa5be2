package database

import (
	"strings"

	"delivery-planner/internal/models"
)

// EncodeDays stores schedule days as a comma-separated column value
func EncodeDays(days []models.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

// DecodeDays reverses EncodeDays, skipping blanks and unknown keys
func DecodeDays(s string) []models.Weekday {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var days []models.Weekday
	for _, part := range strings.Split(s, ",") {
		d, err := models.ParseWeekday(part)
		if err != nil || d == models.AllDays {
			continue
		}
		days = append(days, d)
	}
	return days
}

// RouteRow is one stop position in a saved plan, shared by the SQL stores
type RouteRow struct {
	Slot     models.RouteSlot
	Position int
	StopID   int64
}

// FlattenRoutes lists every stop of a plan result in slot, position order
func FlattenRoutes(r *models.PlanResult) []RouteRow {
	var rows []RouteRow
	for i, route := range r.Routes {
		for pos, id := range route.StopIDs {
			rows = append(rows, RouteRow{Slot: models.ActiveSlot(i), Position: pos, StopID: id})
		}
	}
	for pos, id := range r.Outliers.StopIDs {
		rows = append(rows, RouteRow{Slot: models.OutlierSlot(), Position: pos, StopID: id})
	}
	return rows
}

// SlotKind is the column value separating active routes from the outlier bucket
func SlotKind(s models.RouteSlot) string {
	if s.IsOutlier() {
		return "outlier"
	}
	return "active"
}

// ParseSlot rebuilds a slot from its stored kind and index
func ParseSlot(kind string, index int) models.RouteSlot {
	if kind == "outlier" {
		return models.OutlierSlot()
	}
	return models.ActiveSlot(index)
}

// SlotRow is the per-route header of a saved plan: presentation and metrics
type SlotRow struct {
	Driver  models.DriverSlot
	Metrics models.RouteMetrics
}

// SlotRows lists the active routes in order followed by the outlier bucket
func SlotRows(r *models.PlanResult) []SlotRow {
	rows := make([]SlotRow, 0, len(r.Routes)+1)
	for _, route := range r.Routes {
		rows = append(rows, SlotRow{Driver: route.Driver, Metrics: route.Metrics})
	}
	return append(rows, SlotRow{Driver: r.Outliers.Driver, Metrics: r.Outliers.Metrics})
}

// AssembleRoutes rebuilds routes and the outlier bucket from stored rows.
// Stop rows must arrive in position order within each slot.
func AssembleRoutes(slots []SlotRow, stops []RouteRow) ([]models.PlannedRoute, models.PlannedRoute) {
	var routes []models.PlannedRoute
	outliers := models.PlannedRoute{Driver: models.OutlierDriverSlot(), StopIDs: []int64{}}
	for _, s := range slots {
		if s.Driver.Slot.IsOutlier() {
			outliers.Driver = s.Driver
			outliers.Metrics = s.Metrics
			continue
		}
		routes = append(routes, models.PlannedRoute{Driver: s.Driver, StopIDs: []int64{}, Metrics: s.Metrics})
	}
	if routes == nil {
		routes = []models.PlannedRoute{}
	}

	for _, row := range stops {
		if row.Slot.IsOutlier() {
			outliers.StopIDs = append(outliers.StopIDs, row.StopID)
			continue
		}
		if i := row.Slot.Index(); i >= 0 && i < len(routes) {
			routes[i].StopIDs = append(routes[i].StopIDs, row.StopID)
		}
	}
	return routes, outliers
}
