package geocoding

import (
	"context"
	"errors"
	"log"
	"strings"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
)

// BackfillReport counts the outcome of a Backfill run
type BackfillReport struct {
	Attempted int     `json:"attempted"`
	Resolved  int     `json:"resolved"`
	Failed    []int64 `json:"failed"`
}

// Backfill geocodes every stop still missing coordinates and stores the
// result. Stops the geocoder cannot resolve are reported, not fatal; storage
// errors and cancellation abort the run.
func Backfill(ctx context.Context, repo database.StopRepository, g Geocoder, maxRetries int) (BackfillReport, error) {
	report := BackfillReport{Failed: []int64{}}

	stops, err := repo.ListUngeocoded(ctx)
	if err != nil {
		return report, err
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	log.Printf("[GEOCODING] Backfill starting: pending=%d", len(stops))
	for i := range stops {
		s := &stops[i]
		report.Attempted++

		result, err := g.GeocodeWithRetry(ctx, QueryFor(s), maxRetries)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			var geoErr *ErrGeocodingFailed
			if !errors.As(err, &geoErr) {
				return report, err
			}
			report.Failed = append(report.Failed, s.ID)
			continue
		}

		if err := repo.SetCoordinates(ctx, s.ID, result.Coords); err != nil {
			return report, err
		}
		report.Resolved++
	}

	log.Printf("[GEOCODING] Backfill complete: attempted=%d resolved=%d failed=%d",
		report.Attempted, report.Resolved, len(report.Failed))
	return report, nil
}

// QueryFor builds the free-text lookup for a stop, appending the city when
// the address does not already mention it
func QueryFor(s *models.Stop) string {
	addr := strings.TrimSpace(s.Address)
	city := strings.TrimSpace(s.City)
	if city == "" || strings.Contains(strings.ToLower(addr), strings.ToLower(city)) {
		return addr
	}
	if addr == "" {
		return city
	}
	return addr + ", " + city
}
