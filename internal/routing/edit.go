package routing

import (
	"fmt"

	"delivery-planner/internal/models"
)

// MoveStop moves stopID from wherever it sits in plan into slot `to`, then
// re-sequences both touched routes keeping their current first stop in place.
// plan is not modified; the edited copy is returned.
func MoveStop(plan *models.PlanResult, stops []models.Stop, stopID int64, to models.RouteSlot, opts Options) (*models.PlanResult, error) {
	e, err := newEditor(plan, stops, opts)
	if err != nil {
		return nil, err
	}

	from, pos, ok := e.locate(stopID)
	if !ok {
		return nil, &InputError{Reason: fmt.Sprintf("stop %d is not in the plan", stopID)}
	}
	dst, ok := e.result.Route(to)
	if !ok {
		return nil, &InputError{Reason: fmt.Sprintf("route slot %s does not exist", to)}
	}
	if from == to {
		return e.result, nil
	}

	src, _ := e.result.Route(from)
	src.StopIDs = append(src.StopIDs[:pos:pos], src.StopIDs[pos+1:]...)
	dst.StopIDs = append(dst.StopIDs, stopID)

	for _, r := range []*models.PlannedRoute{src, dst} {
		path, err := e.path(r.StopIDs)
		if err != nil {
			return nil, err
		}
		var locks Locks
		if len(path) > 0 && path[0].ID != stopID {
			first := path[0].ID
			locks.First = &first
		}
		e.store(r, e.sequencer.Sequence(path, locks))
	}

	summarize(e.result)
	return e.result, nil
}

// ReverseRoute flips the visiting order of one route
func ReverseRoute(plan *models.PlanResult, stops []models.Stop, slot models.RouteSlot, opts Options) (*models.PlanResult, error) {
	e, err := newEditor(plan, stops, opts)
	if err != nil {
		return nil, err
	}
	r, ok := e.result.Route(slot)
	if !ok {
		return nil, &InputError{Reason: fmt.Sprintf("route slot %s does not exist", slot)}
	}
	path, err := e.path(r.StopIDs)
	if err != nil {
		return nil, err
	}
	reversePoints(path)
	e.store(r, path)
	summarize(e.result)
	return e.result, nil
}

// ResequenceRoute runs the sequencer over one route from scratch, rotating it
// to the depot when the options ask for that
func ResequenceRoute(plan *models.PlanResult, stops []models.Stop, slot models.RouteSlot, opts Options) (*models.PlanResult, error) {
	e, err := newEditor(plan, stops, opts)
	if err != nil {
		return nil, err
	}
	r, ok := e.result.Route(slot)
	if !ok {
		return nil, &InputError{Reason: fmt.Sprintf("route slot %s does not exist", slot)}
	}
	path, err := e.path(r.StopIDs)
	if err != nil {
		return nil, err
	}
	path = e.sequencer.Sequence(path, Locks{})
	if e.opts.RotateToDepot {
		path = RotateToDepot(path, *e.opts.Depot)
	}
	e.store(r, path)
	summarize(e.result)
	return e.result, nil
}

type editor struct {
	opts      Options
	weights   Weights
	sequencer *Sequencer
	points    map[int64]Point
	result    *models.PlanResult
}

func newEditor(plan *models.PlanResult, stops []models.Stop, opts Options) (*editor, error) {
	if plan == nil {
		return nil, &InputError{Reason: "no plan to edit"}
	}
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	points := make(map[int64]Point, len(stops))
	for i := range stops {
		s := &stops[i]
		if c, ok := s.GetCoords(); ok && c.IsFinite() {
			points[s.ID] = Point{ID: s.ID, City: s.City, Coordinates: c}
		}
	}

	return &editor{
		opts:      opts,
		weights:   weightsOf(opts),
		sequencer: NewSequencer(opts.SeedCount, opts.Parallel),
		points:    points,
		result:    clonePlan(plan),
	}, nil
}

func (e *editor) locate(stopID int64) (models.RouteSlot, int, bool) {
	for i, r := range e.result.Routes {
		for j, id := range r.StopIDs {
			if id == stopID {
				return models.ActiveSlot(i), j, true
			}
		}
	}
	for j, id := range e.result.Outliers.StopIDs {
		if id == stopID {
			return models.OutlierSlot(), j, true
		}
	}
	return models.RouteSlot{}, 0, false
}

func (e *editor) path(ids []int64) ([]Point, error) {
	path := make([]Point, len(ids))
	for i, id := range ids {
		p, ok := e.points[id]
		if !ok {
			return nil, &InputError{Reason: fmt.Sprintf("stop %d has no usable coordinates", id)}
		}
		path[i] = p
	}
	return path, nil
}

func (e *editor) store(r *models.PlannedRoute, path []Point) {
	ids := make([]int64, len(path))
	for i, p := range path {
		ids[i] = p.ID
	}
	r.StopIDs = ids
	r.Metrics = Measure(path, e.weights)
}

func clonePlan(plan *models.PlanResult) *models.PlanResult {
	out := &models.PlanResult{
		Routes:   make([]models.PlannedRoute, len(plan.Routes)),
		Outliers: cloneRoute(plan.Outliers),
		Excluded: append([]models.Exclusion{}, plan.Excluded...),
		Summary:  plan.Summary,
	}
	for i, r := range plan.Routes {
		out.Routes[i] = cloneRoute(r)
	}
	return out
}

func cloneRoute(r models.PlannedRoute) models.PlannedRoute {
	r.StopIDs = append([]int64{}, r.StopIDs...)
	return r
}
