package routing

import (
	"fmt"

	"delivery-planner/internal/models"
)

// Select filters the full stop set down to geocoded candidates for day.
// Candidates keep input order. Paused stops are excluded only when
// activeOnly is set.
func Select(stops []models.Stop, day models.Weekday, activeOnly bool) ([]Point, []models.Exclusion) {
	candidates := make([]Point, 0, len(stops))
	excluded := make([]models.Exclusion, 0)

	for i := range stops {
		s := &stops[i]
		switch {
		case activeOnly && !s.Active:
			excluded = append(excluded, models.Exclusion{StopID: s.ID, Reason: models.ExcludedPaused})
			continue
		case !s.ScheduledOn(day):
			excluded = append(excluded, models.Exclusion{StopID: s.ID, Reason: models.ExcludedWrongDay})
			continue
		}

		coords, ok := s.GetCoords()
		if !ok {
			excluded = append(excluded, models.Exclusion{StopID: s.ID, Reason: models.ExcludedUngeocoded})
			continue
		}
		if !coords.IsFinite() {
			excluded = append(excluded, models.Exclusion{StopID: s.ID, Reason: models.ExcludedNonFinite})
			continue
		}

		candidates = append(candidates, Point{ID: s.ID, City: s.City, Coordinates: coords})
	}

	return candidates, excluded
}

func validatePoints(points []Point) error {
	for _, p := range points {
		if !p.IsFinite() {
			return &InputError{Reason: fmt.Sprintf("non-finite coordinates for stop %d", p.ID)}
		}
	}
	return nil
}
