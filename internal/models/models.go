package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" yaml:"lng" mapstructure:"lng"`
}

// IsFinite reports whether both components are finite numbers
func (c Coordinates) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) && !math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// Weekday is a schedule-day key
type Weekday string

const (
	Sunday    Weekday = "sun"
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	AllDays   Weekday = "all"
)

// Weekdays lists the seven schedule keys in calendar order
var Weekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// ParseWeekday accepts a key ("mon"), a full English name ("Monday") or "all".
// The empty string parses as AllDays.
func ParseWeekday(s string) (Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == string(AllDays) {
		return AllDays, nil
	}
	for i, d := range Weekdays {
		if string(d) == v || strings.ToLower(time.Weekday(i).String()) == v {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", s)
}

// WeekdayOf returns the schedule key for a calendar date
func WeekdayOf(t time.Time) Weekday {
	return Weekdays[int(t.Weekday())]
}

// Stop is a single deliverable location. Lat/Lng are nil until geocoded.
type Stop struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Address   string    `json:"address" yaml:"address"`
	City      string    `json:"city,omitempty" yaml:"city,omitempty"`
	Lat       *float64  `json:"lat" yaml:"lat"`
	Lng       *float64  `json:"lng" yaml:"lng"`
	Days      []Weekday `json:"days,omitempty" yaml:"days,omitempty"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// GetCoords returns the stop coordinates and whether the stop is geocoded
func (s *Stop) GetCoords() (Coordinates, bool) {
	if s.Lat == nil || s.Lng == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *s.Lat, Lng: *s.Lng}, true
}

// SetCoords stores geocoded coordinates on the stop
func (s *Stop) SetCoords(c Coordinates) {
	lat, lng := c.Lat, c.Lng
	s.Lat = &lat
	s.Lng = &lng
}

// ScheduledOn reports whether the stop is served on day.
// A stop without schedule days is served every day.
func (s *Stop) ScheduledOn(day Weekday) bool {
	if day == AllDays || day == "" || len(s.Days) == 0 {
		return true
	}
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}

// RouteSlot identifies where a stop sits in a plan: an active driver route
// (0-based index) or the outlier bucket.
type RouteSlot struct {
	outlier bool
	index   int
}

// ActiveSlot returns the slot of the n-th active route
func ActiveSlot(n int) RouteSlot { return RouteSlot{index: n} }

// OutlierSlot returns the reserved overflow slot
func OutlierSlot() RouteSlot { return RouteSlot{outlier: true, index: -1} }

func (s RouteSlot) IsOutlier() bool { return s.outlier }

// Index returns the active route index, or -1 for the outlier slot
func (s RouteSlot) Index() int {
	if s.outlier {
		return -1
	}
	return s.index
}

func (s RouteSlot) String() string {
	if s.outlier {
		return "outlier"
	}
	return fmt.Sprintf("%d", s.index)
}

func (s RouteSlot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RouteSlot) UnmarshalText(b []byte) error {
	v := strings.TrimSpace(string(b))
	if v == "outlier" {
		*s = OutlierSlot()
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 || fmt.Sprintf("%d", n) != v {
		return fmt.Errorf("invalid route slot %q", v)
	}
	*s = ActiveSlot(n)
	return nil
}

// DriverSlot is the presentation metadata attached to a route
type DriverSlot struct {
	Slot  RouteSlot `json:"slot" yaml:"slot"`
	Color string    `json:"color" yaml:"color"`
	Label string    `json:"label" yaml:"label"`
}

var driverPalette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#008080", "#9a6324",
	"#800000", "#808000", "#000075", "#fabebe", "#ffd8b1",
}

const outlierColor = "#808080"

// NewDriverSlots builds the metadata for k active routes
func NewDriverSlots(k int) []DriverSlot {
	if k < 0 {
		k = 0
	}
	slots := make([]DriverSlot, k)
	for i := range slots {
		slots[i] = DriverSlot{
			Slot:  ActiveSlot(i),
			Color: driverPalette[i%len(driverPalette)],
			Label: fmt.Sprintf("Driver %d", i+1),
		}
	}
	return slots
}

// OutlierDriverSlot is the metadata of the overflow bucket
func OutlierDriverSlot() DriverSlot {
	return DriverSlot{Slot: OutlierSlot(), Color: outlierColor, Label: "Driver 0"}
}

// PartitionStrategy selects how candidates are split into groups
type PartitionStrategy string

const (
	StrategyCityLocked PartitionStrategy = "city_locked"
	StrategyKMeans     PartitionStrategy = "kmeans"
	StrategyMorton     PartitionStrategy = "morton"
	StrategyAreaSweep  PartitionStrategy = "area_sweep"
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (PartitionStrategy, error) {
	switch PartitionStrategy(s) {
	case StrategyCityLocked, StrategyKMeans, StrategyMorton, StrategyAreaSweep:
		return PartitionStrategy(s), nil
	}
	return "", fmt.Errorf("unknown partition strategy %q", s)
}

// PlanOptions holds every planner tunable exposed at the boundary
type PlanOptions struct {
	Drivers               int               `json:"drivers" yaml:"drivers" mapstructure:"drivers"`
	Day                   Weekday           `json:"day" yaml:"day" mapstructure:"day"`
	ActiveOnly            bool              `json:"active_only" yaml:"active_only" mapstructure:"active_only"`
	Strategy              PartitionStrategy `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
	MinutesPerMile        float64           `json:"minutes_per_mile" yaml:"minutes_per_mile" mapstructure:"minutes_per_mile"`
	MinutesPerStop        float64           `json:"minutes_per_stop" yaml:"minutes_per_stop" mapstructure:"minutes_per_stop"`
	Depot                 *Coordinates      `json:"depot,omitempty" yaml:"depot,omitempty" mapstructure:"depot"`
	RotateToDepot         bool              `json:"rotate_to_depot" yaml:"rotate_to_depot" mapstructure:"rotate_to_depot"`
	TargetSpreadMinutes   float64           `json:"target_spread_minutes" yaml:"target_spread_minutes" mapstructure:"target_spread_minutes"`
	MaxPasses             int               `json:"max_passes" yaml:"max_passes" mapstructure:"max_passes"`
	SeedCount             int               `json:"seed_count" yaml:"seed_count" mapstructure:"seed_count"`
	SoftCapFactor         float64           `json:"soft_cap_factor" yaml:"soft_cap_factor" mapstructure:"soft_cap_factor"`
	CitySlackMinutes      float64           `json:"city_slack_minutes" yaml:"city_slack_minutes" mapstructure:"city_slack_minutes"`
	OutlierDistanceFactor float64           `json:"outlier_distance_factor" yaml:"outlier_distance_factor" mapstructure:"outlier_distance_factor"`
	OutlierIDs            []int64           `json:"outlier_ids,omitempty" yaml:"outlier_ids,omitempty" mapstructure:"outlier_ids"`
	Parallel              bool              `json:"parallel" yaml:"parallel" mapstructure:"parallel"`
}

// RouteMetrics is derived from a route's current order; never cached across edits
type RouteMetrics struct {
	DistanceMiles float64     `json:"distance_miles" yaml:"distance_miles"`
	Stops         int         `json:"stops" yaml:"stops"`
	Minutes       float64     `json:"minutes" yaml:"minutes"`
	Centroid      Coordinates `json:"centroid" yaml:"centroid"`
}

// PlannedRoute is one ordered route in a plan
type PlannedRoute struct {
	Driver  DriverSlot   `json:"driver" yaml:"driver"`
	StopIDs []int64      `json:"stop_ids" yaml:"stop_ids"`
	Metrics RouteMetrics `json:"metrics" yaml:"metrics"`
}

// ExclusionReason explains why the selector dropped a stop
type ExclusionReason string

const (
	ExcludedPaused     ExclusionReason = "paused"
	ExcludedWrongDay   ExclusionReason = "wrong_day"
	ExcludedUngeocoded ExclusionReason = "ungeocoded"
	ExcludedNonFinite  ExclusionReason = "non_finite"
)

// Exclusion is a stop left out of planning for this run
type Exclusion struct {
	StopID int64           `json:"stop_id" yaml:"stop_id"`
	Reason ExclusionReason `json:"reason" yaml:"reason"`
}

// PlanSummary contains aggregate stats for a plan
type PlanSummary struct {
	Strategy       PartitionStrategy `json:"strategy" yaml:"strategy"`
	Fallback       PartitionStrategy `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Candidates     int               `json:"candidates" yaml:"candidates"`
	Routed         int               `json:"routed" yaml:"routed"`
	Outliers       int               `json:"outliers" yaml:"outliers"`
	Excluded       int               `json:"excluded" yaml:"excluded"`
	TotalMiles     float64           `json:"total_miles" yaml:"total_miles"`
	MinMinutes     float64           `json:"min_minutes" yaml:"min_minutes"`
	MaxMinutes     float64           `json:"max_minutes" yaml:"max_minutes"`
	SpreadMinutes  float64           `json:"spread_minutes" yaml:"spread_minutes"`
	BalancerPasses int               `json:"balancer_passes" yaml:"balancer_passes"`
}

// PlanResult is the terminal artifact of a planning run
type PlanResult struct {
	Routes   []PlannedRoute `json:"routes" yaml:"routes"`
	Outliers PlannedRoute   `json:"outliers" yaml:"outliers"`
	Excluded []Exclusion    `json:"excluded" yaml:"excluded"`
	Summary  PlanSummary    `json:"summary" yaml:"summary"`
}

// Route returns the route held in slot, or false if the slot is out of range
func (p *PlanResult) Route(slot RouteSlot) (*PlannedRoute, bool) {
	if slot.IsOutlier() {
		return &p.Outliers, true
	}
	if slot.Index() < 0 || slot.Index() >= len(p.Routes) {
		return nil, false
	}
	return &p.Routes[slot.Index()], true
}

// SavedPlan is a persisted plan with its identity and inputs
type SavedPlan struct {
	ID        string      `json:"id" yaml:"id"`
	ParentID  string      `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Day       Weekday     `json:"day" yaml:"day"`
	Options   PlanOptions `json:"options" yaml:"options"`
	Result    PlanResult  `json:"result" yaml:"result"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
}

// PlanListItem is the lightweight listing row for saved plans
type PlanListItem struct {
	ID        string      `json:"id" yaml:"id"`
	ParentID  string      `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Day       Weekday     `json:"day" yaml:"day"`
	Drivers   int         `json:"drivers" yaml:"drivers"`
	Summary   PlanSummary `json:"summary" yaml:"summary"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
}

// Settings holds persisted application configuration
type Settings struct {
	Depot    *Coordinates `json:"depot,omitempty" yaml:"depot,omitempty"`
	Defaults PlanOptions  `json:"defaults" yaml:"defaults"`
}
