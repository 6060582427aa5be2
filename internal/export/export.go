// Package export renders saved plans as driver manifests.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"delivery-planner/internal/models"
)

// Format is an export encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts a format name or common file extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// Manifest is the export view of a plan: routes resolved to stop details
type Manifest struct {
	PlanID   string             `json:"plan_id" yaml:"plan_id"`
	Day      models.Weekday     `json:"day" yaml:"day"`
	Summary  models.PlanSummary `json:"summary" yaml:"summary"`
	Routes   []ManifestRoute    `json:"routes" yaml:"routes"`
	Excluded []models.Exclusion `json:"excluded" yaml:"excluded"`
}

type ManifestRoute struct {
	Driver  models.DriverSlot   `json:"driver" yaml:"driver"`
	Metrics models.RouteMetrics `json:"metrics" yaml:"metrics"`
	Stops   []ManifestStop      `json:"stops" yaml:"stops"`
}

type ManifestStop struct {
	Sequence int     `json:"sequence" yaml:"sequence"`
	ID       int64   `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Address  string  `json:"address" yaml:"address"`
	City     string  `json:"city,omitempty" yaml:"city,omitempty"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lng      float64 `json:"lng" yaml:"lng"`
}

// BuildManifest resolves the plan's stop ids against stops. Active routes
// come first in slot order; the outlier bucket is last and only included
// when it holds stops. Ids missing from stops keep their id with blank details.
func BuildManifest(plan *models.SavedPlan, stops []models.Stop) *Manifest {
	byID := make(map[int64]*models.Stop, len(stops))
	for i := range stops {
		byID[stops[i].ID] = &stops[i]
	}

	m := &Manifest{
		PlanID:   plan.ID,
		Day:      plan.Day,
		Summary:  plan.Result.Summary,
		Routes:   make([]ManifestRoute, 0, len(plan.Result.Routes)+1),
		Excluded: plan.Result.Excluded,
	}
	if m.Excluded == nil {
		m.Excluded = []models.Exclusion{}
	}

	routes := plan.Result.Routes
	if len(plan.Result.Outliers.StopIDs) > 0 {
		routes = append(append([]models.PlannedRoute{}, routes...), plan.Result.Outliers)
	}
	for _, r := range routes {
		mr := ManifestRoute{Driver: r.Driver, Metrics: r.Metrics, Stops: make([]ManifestStop, len(r.StopIDs))}
		for i, id := range r.StopIDs {
			ms := ManifestStop{Sequence: i + 1, ID: id}
			if s, ok := byID[id]; ok {
				ms.Name, ms.Address, ms.City = s.Name, s.Address, s.City
				if c, ok := s.GetCoords(); ok {
					ms.Lat, ms.Lng = c.Lat, c.Lng
				}
			}
			mr.Stops[i] = ms
		}
		m.Routes = append(m.Routes, mr)
	}
	return m
}

// Write encodes the manifest to w in format f
func Write(w io.Writer, f Format, m *Manifest) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, m)
	case FormatYAML:
		return WriteYAML(w, m)
	case FormatCSV:
		return WriteCSV(w, m)
	}
	return fmt.Errorf("unknown export format %q", f)
}

func WriteJSON(w io.Writer, m *Manifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func WriteYAML(w io.Writer, m *Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

var csvHeader = []string{"driver", "slot", "sequence", "stop_id", "name", "address", "city", "lat", "lng"}

// WriteCSV writes one row per stop visit, routes in manifest order
func WriteCSV(w io.Writer, m *Manifest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range m.Routes {
		for _, s := range r.Stops {
			row := []string{
				r.Driver.Label,
				r.Driver.Slot.String(),
				strconv.Itoa(s.Sequence),
				strconv.FormatInt(s.ID, 10),
				s.Name,
				s.Address,
				s.City,
				strconv.FormatFloat(s.Lat, 'f', 6, 64),
				strconv.FormatFloat(s.Lng, 'f', 6, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
