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

// ReadStops decodes a stop list. JSON and YAML hold a list of stop objects;
// CSV needs a header row naming at least name and address, with optional
// id, city, lat, lng, days (space or semicolon separated) and active columns.
// Stops without an id are numbered after the largest id seen.
func ReadStops(r io.Reader, f Format) ([]models.Stop, error) {
	var stops []models.Stop
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&stops)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&stops)
		if err == io.EOF {
			err = nil
		}
	case FormatCSV:
		stops, err = readStopsCSV(r)
	default:
		err = fmt.Errorf("unknown stop format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("read stops: %w", err)
	}

	var maxID int64
	seen := make(map[int64]bool, len(stops))
	for _, s := range stops {
		if s.ID != 0 {
			if seen[s.ID] {
				return nil, fmt.Errorf("read stops: duplicate id %d", s.ID)
			}
			seen[s.ID] = true
		}
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	for i := range stops {
		if stops[i].ID == 0 {
			maxID++
			stops[i].ID = maxID
		}
	}
	if stops == nil {
		stops = []models.Stop{}
	}
	return stops, nil
}

func readStopsCSV(r io.Reader) ([]models.Stop, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "address"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var stops []models.Stop
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return stops, nil
		}
		if err != nil {
			return nil, err
		}
		s, err := stopFromRecord(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		stops = append(stops, s)
	}
}

func stopFromRecord(rec []string, col map[string]int) (models.Stop, error) {
	field := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	s := models.Stop{
		Name:    field("name"),
		Address: field("address"),
		City:    field("city"),
		Active:  true,
	}
	if v := field("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("invalid id %q", v)
		}
		s.ID = id
	}
	if lat, lng := field("lat"), field("lng"); lat != "" || lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		ln, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil {
			return s, fmt.Errorf("invalid coordinates %q,%q", lat, lng)
		}
		s.SetCoords(models.Coordinates{Lat: la, Lng: ln})
	}
	if v := field("days"); v != "" {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ' ' || r == '|' }) {
			d, err := models.ParseWeekday(part)
			if err != nil {
				return s, err
			}
			if d != models.AllDays {
				s.Days = append(s.Days, d)
			}
		}
	}
	if v := field("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("invalid active flag %q", v)
		}
		s.Active = active
	}
	return s, nil
}
