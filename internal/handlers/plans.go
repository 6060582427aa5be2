package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"delivery-planner/internal/export"
	"delivery-planner/internal/metrics"
	"delivery-planner/internal/models"
	"delivery-planner/internal/routing"
)

// PlanListResponse represents the list response
type PlanListResponse struct {
	Plans []models.PlanListItem `json:"plans"`
	Total int                   `json:"total"`
}

// HandleCreatePlan handles POST /api/v1/plans. The body holds option
// overrides; omitted fields keep the configured defaults.
func (h *Handler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var (
		opts  models.PlanOptions
		stops []models.Stop
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		if opts, err = h.planDefaults(ctx); err != nil {
			return fmt.Errorf("failed to load plan defaults: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if stops, err = h.DB.Stops().List(ctx, ""); err != nil {
			return fmt.Errorf("failed to list stops for planning: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] %v", err)
		h.handleInternalError(w, err)
		return
	}
	// decoding writes through pointers and reuses slices, so detach them first
	if opts.Depot != nil {
		depot := *opts.Depot
		opts.Depot = &depot
	}
	opts.OutlierIDs = append([]int64(nil), opts.OutlierIDs...)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			log.Printf("[HTTP] POST /api/v1/plans: invalid_body err=%v", err)
			h.handleValidationError(w, "Invalid request body")
			return
		}
	}

	log.Printf("[HTTP] POST /api/v1/plans: drivers=%d day=%s strategy=%s", opts.Drivers, opts.Day, opts.Strategy)

	planner, err := routing.NewPlanner(opts)
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}
	opts = planner.Options()

	start := time.Now()
	result, err := planner.Plan(stops)
	if err != nil {
		metrics.ObservePlan(opts.Strategy, nil, time.Since(start))
		log.Printf("[ERROR] Planning failed: err=%v", err)
		h.handlePlanningError(w, err)
		return
	}
	metrics.ObservePlan(opts.Strategy, &result.Summary, time.Since(start))

	saved := &models.SavedPlan{
		ID:        uuid.NewString(),
		Day:       opts.Day,
		Options:   opts,
		Result:    *result,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.DB.Plans().Save(r.Context(), saved); err != nil {
		log.Printf("[ERROR] Failed to save plan: err=%v", err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Created plan: id=%s routed=%d outliers=%d", saved.ID, result.Summary.Routed, result.Summary.Outliers)
	h.writeJSON(w, http.StatusCreated, saved)
}

// HandleListPlans handles GET /api/v1/plans?limit=&offset=
func (h *Handler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	limit, offset := 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			h.handleValidationError(w, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.handleValidationError(w, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	log.Printf("[HTTP] GET /api/v1/plans: limit=%d offset=%d", limit, offset)
	plans, total, err := h.DB.Plans().List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[ERROR] Failed to list plans: err=%v", err)
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PlanListResponse{Plans: plans, Total: total})
}

// HandlePlanAction dispatches /api/v1/plans/{id}[/{action}]
func (h *Handler) HandlePlanAction(w http.ResponseWriter, r *http.Request) {
	id, action := planPath(r.URL.Path)
	if id == "" {
		h.handleNotFound(w, "Plan not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGetPlan(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		h.handleDeletePlan(w, r, id)
	case action == "export" && r.Method == http.MethodGet:
		h.handleExportPlan(w, r, id)
	case (action == "move" || action == "reverse" || action == "resequence") && r.Method == http.MethodPost:
		h.handleEditPlan(w, r, id, action)
	case action == "" || action == "export" || action == "move" || action == "reverse" || action == "resequence":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		h.handleNotFound(w, fmt.Sprintf("Unknown plan action %q", action))
	}
}

// loadPlan fetches a saved plan, writing a 404 or 500 when it cannot
func (h *Handler) loadPlan(w http.ResponseWriter, r *http.Request, id string) (*models.SavedPlan, bool) {
	plan, err := h.DB.Plans().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to get plan: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return nil, false
	}
	if plan == nil {
		log.Printf("[HTTP] Plan not found: id=%s", id)
		h.handleNotFound(w, "Plan not found")
		return nil, false
	}
	return plan, true
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request, id string) {
	log.Printf("[HTTP] GET /api/v1/plans/{id}: id=%s", id)
	plan, ok := h.loadPlan(w, r, id)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleDeletePlan(w http.ResponseWriter, r *http.Request, id string) {
	log.Printf("[HTTP] DELETE /api/v1/plans/{id}: id=%s", id)
	if err := h.DB.Plans().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Plan not found")
			return
		}
		log.Printf("[ERROR] Failed to delete plan: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportPlan(w http.ResponseWriter, r *http.Request, id string) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	log.Printf("[HTTP] GET /api/v1/plans/{id}/export: id=%s format=%s", id, format)

	plan, ok := h.loadPlan(w, r, id)
	if !ok {
		return
	}
	stops, err := h.DB.Stops().GetByIDs(r.Context(), planStopIDs(&plan.Result))
	if err != nil {
		log.Printf("[ERROR] Failed to load plan stops: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, export.BuildManifest(plan, stops)); err != nil {
		h.handleInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="plan-%s.%s"`, plan.ID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type editRequest struct {
	StopID int64             `json:"stop_id"`
	To     *models.RouteSlot `json:"to"`
	Slot   *models.RouteSlot `json:"slot"`
}

// target returns the slot the action works on; a missing one is an error
// since the zero RouteSlot is a real route
func (req *editRequest) target(action string) (models.RouteSlot, error) {
	if action == "move" {
		if req.To == nil {
			return models.RouteSlot{}, fmt.Errorf("to is required")
		}
		return *req.To, nil
	}
	if req.Slot == nil {
		return models.RouteSlot{}, fmt.Errorf("slot is required")
	}
	return *req.Slot, nil
}

// handleEditPlan applies a manual edit and saves the outcome as a new plan
// whose parent is the edited one. The original is left untouched.
func (h *Handler) handleEditPlan(w http.ResponseWriter, r *http.Request, id, action string) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/plans/{id}/%s: invalid_body err=%v", action, err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	slot, err := req.target(action)
	if err != nil {
		log.Printf("[HTTP] POST /api/v1/plans/{id}/%s: validation_failed err=%v", action, err)
		h.handleValidationError(w, err.Error())
		return
	}
	log.Printf("[HTTP] POST /api/v1/plans/{id}/%s: id=%s stop_id=%d slot=%s", action, id, req.StopID, slot)

	plan, ok := h.loadPlan(w, r, id)
	if !ok {
		return
	}
	stops, err := h.DB.Stops().GetByIDs(r.Context(), planStopIDs(&plan.Result))
	if err != nil {
		log.Printf("[ERROR] Failed to load plan stops: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}

	var edited *models.PlanResult
	switch action {
	case "move":
		edited, err = routing.MoveStop(&plan.Result, stops, req.StopID, slot, plan.Options)
	case "reverse":
		edited, err = routing.ReverseRoute(&plan.Result, stops, slot, plan.Options)
	default:
		edited, err = routing.ResequenceRoute(&plan.Result, stops, slot, plan.Options)
	}
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}

	saved := &models.SavedPlan{
		ID:        uuid.NewString(),
		ParentID:  plan.ID,
		Day:       plan.Day,
		Options:   plan.Options,
		Result:    *edited,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.DB.Plans().Save(r.Context(), saved); err != nil {
		log.Printf("[ERROR] Failed to save edited plan: parent=%s err=%v", plan.ID, err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Saved edited plan: id=%s parent=%s action=%s", saved.ID, plan.ID, action)
	h.writeJSON(w, http.StatusCreated, saved)
}

func planStopIDs(result *models.PlanResult) []int64 {
	var ids []int64
	for _, r := range result.Routes {
		ids = append(ids, r.StopIDs...)
	}
	return append(ids, result.Outliers.StopIDs...)
}
