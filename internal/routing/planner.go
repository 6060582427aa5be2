package routing

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"delivery-planner/internal/models"
)

// Planner runs the full pipeline: select, split outliers, partition,
// sequence, balance, rotate.
type Planner struct {
	opts      Options
	weights   Weights
	sequencer *Sequencer
}

// NewPlanner validates opts and fills zero-valued tunables
func NewPlanner(opts Options) (*Planner, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Planner{
		opts:      opts,
		weights:   weightsOf(opts),
		sequencer: NewSequencer(opts.SeedCount, opts.Parallel),
	}, nil
}

// Plan is a convenience wrapper around NewPlanner(opts).Plan(stops)
func Plan(stops []models.Stop, opts Options) (*models.PlanResult, error) {
	p, err := NewPlanner(opts)
	if err != nil {
		return nil, err
	}
	return p.Plan(stops)
}

// Options returns the normalized options the planner runs with
func (p *Planner) Options() Options {
	return p.opts
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.Drivers <= 0 {
		return opts, &InputError{Reason: fmt.Sprintf("driver count must be positive, got %d", opts.Drivers)}
	}
	if opts.MinutesPerMile < 0 || opts.MinutesPerStop < 0 ||
		math.IsNaN(opts.MinutesPerMile) || math.IsNaN(opts.MinutesPerStop) {
		return opts, &InputError{Reason: "minute weights must be non-negative"}
	}
	if opts.TargetSpreadMinutes < 0 || math.IsNaN(opts.TargetSpreadMinutes) {
		return opts, &InputError{Reason: "target spread must be non-negative"}
	}
	if opts.CitySlackMinutes < 0 || math.IsNaN(opts.CitySlackMinutes) {
		return opts, &InputError{Reason: "city slack must be non-negative"}
	}
	if math.IsNaN(opts.SoftCapFactor) {
		return opts, &InputError{Reason: "soft cap factor must be a number"}
	}
	if opts.Strategy == "" {
		opts.Strategy = models.StrategyKMeans
	}
	if _, err := models.ParseStrategy(string(opts.Strategy)); err != nil {
		return opts, &InputError{Reason: err.Error()}
	}
	if opts.Day == "" {
		opts.Day = models.AllDays
	}
	if opts.Depot != nil && !opts.Depot.IsFinite() {
		return opts, &InputError{Reason: "depot coordinates must be finite"}
	}
	if opts.RotateToDepot && opts.Depot == nil {
		return opts, &InputError{Reason: "rotate_to_depot requires a depot"}
	}
	if opts.SeedCount < 1 {
		opts.SeedCount = 1
	}
	if opts.MaxPasses < 0 {
		opts.MaxPasses = 0
	}
	if opts.SoftCapFactor <= 0 {
		opts.SoftCapFactor = DefaultOptions().SoftCapFactor
	}
	if opts.OutlierDistanceFactor < 0 {
		opts.OutlierDistanceFactor = 0
	}
	return opts, nil
}

// Plan builds a fresh PlanResult for stops. Identical input yields an
// identical result.
func (p *Planner) Plan(stops []models.Stop) (*models.PlanResult, error) {
	totalStart := time.Now()
	k := p.opts.Drivers

	log.Printf("[PLAN] Starting: stops=%d drivers=%d day=%s strategy=%s",
		len(stops), k, p.opts.Day, p.opts.Strategy)

	phaseStart := time.Now()
	candidates, excluded := Select(stops, p.opts.Day, p.opts.ActiveOnly)
	kept, outliers := splitOutliers(candidates, p.opts.OutlierIDs, p.opts.OutlierDistanceFactor)
	log.Printf("[TIMING] Phase 1 (select): %v (candidates=%d outliers=%d excluded=%d)",
		time.Since(phaseStart), len(candidates), len(outliers), len(excluded))

	phaseStart = time.Now()
	groups, fallback, err := p.partition(kept, k)
	if err != nil {
		return nil, err
	}
	log.Printf("[TIMING] Phase 2 (partition): %v", time.Since(phaseStart))

	phaseStart = time.Now()
	for i := range groups {
		groups[i] = p.sequencer.Sequence(groups[i], Locks{})
	}
	log.Printf("[TIMING] Phase 3 (sequence): %v", time.Since(phaseStart))

	phaseStart = time.Now()
	balanceOpts := p.opts
	if fallback != "" {
		balanceOpts.Strategy = fallback
	}
	report := NewBalancer(balanceOpts).Balance(groups)
	for i, touched := range report.Touched {
		if touched {
			groups[i] = p.sequencer.Sequence(groups[i], Locks{})
		}
	}
	log.Printf("[TIMING] Phase 4 (balance): %v (passes=%d converged=%t)",
		time.Since(phaseStart), report.Passes, report.Converged)

	outlierPath := p.sequencer.Sequence(outliers, Locks{})
	if p.opts.RotateToDepot {
		for i := range groups {
			groups[i] = RotateToDepot(groups[i], *p.opts.Depot)
		}
		outlierPath = RotateToDepot(outlierPath, *p.opts.Depot)
	}

	result := &models.PlanResult{
		Routes:   make([]models.PlannedRoute, k),
		Excluded: excluded,
	}
	slots := models.NewDriverSlots(k)
	for i, g := range groups {
		result.Routes[i] = p.plannedRoute(slots[i], g)
	}
	result.Outliers = p.plannedRoute(models.OutlierDriverSlot(), outlierPath)
	result.Summary = models.PlanSummary{
		Strategy:       p.opts.Strategy,
		Fallback:       fallback,
		Candidates:     len(candidates),
		Excluded:       len(excluded),
		BalancerPasses: report.Passes,
	}
	summarize(result)

	log.Printf("[PLAN] Complete: routed=%d outliers=%d total_miles=%.1f spread=%.1fmin",
		result.Summary.Routed, result.Summary.Outliers, result.Summary.TotalMiles, result.Summary.SpreadMinutes)
	log.Printf("[TIMING] TOTAL: %v", time.Since(totalStart))
	return result, nil
}

// partition runs the configured strategy and falls back to the Morton split
// when the geometry defeats it
func (p *Planner) partition(points []Point, k int) ([][]Point, models.PartitionStrategy, error) {
	partitioner, err := NewPartitioner(p.opts.Strategy, p.weights)
	if err != nil {
		return nil, "", err
	}
	groups, err := partitioner.Partition(points, k)
	var degenerate *DegenerateGeometryError
	if !errors.As(err, &degenerate) {
		return groups, "", err
	}

	log.Printf("[PLAN] %v; falling back to %s", degenerate, models.StrategyMorton)
	groups, err = mortonPartitioner{}.Partition(points, k)
	if err != nil {
		return nil, "", err
	}
	return groups, models.StrategyMorton, nil
}

func (p *Planner) plannedRoute(slot models.DriverSlot, path []Point) models.PlannedRoute {
	ids := make([]int64, len(path))
	for i, pt := range path {
		ids[i] = pt.ID
	}
	return models.PlannedRoute{Driver: slot, StopIDs: ids, Metrics: Measure(path, p.weights)}
}

// summarize recomputes the route-derived summary fields from the routes
func summarize(result *models.PlanResult) {
	s := &result.Summary
	s.Routed, s.TotalMiles = 0, 0
	s.MinMinutes, s.MaxMinutes, s.SpreadMinutes = 0, 0, 0

	minutes := make([]float64, len(result.Routes))
	for i, r := range result.Routes {
		s.Routed += r.Metrics.Stops
		s.TotalMiles += r.Metrics.DistanceMiles
		minutes[i] = r.Metrics.Minutes
	}
	s.Outliers = result.Outliers.Metrics.Stops
	s.TotalMiles += result.Outliers.Metrics.DistanceMiles

	if len(minutes) > 0 {
		s.MinMinutes, s.MaxMinutes = math.Inf(1), math.Inf(-1)
		for _, m := range minutes {
			s.MinMinutes = math.Min(s.MinMinutes, m)
			s.MaxMinutes = math.Max(s.MaxMinutes, m)
		}
		s.SpreadMinutes = s.MaxMinutes - s.MinMinutes
	}
}
