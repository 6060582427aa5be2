package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"delivery-planner/internal/models"
	"delivery-planner/internal/routing"
)

// HandleGetSettings handles GET /api/v1/settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] GET /api/v1/settings")
	settings, err := h.DB.Settings().Get(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to get settings: err=%v", err)
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /api/v1/settings. Zero-valued defaults
// (drivers = 0) clear the stored defaults so the server configuration applies.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		log.Printf("[HTTP] PUT /api/v1/settings: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}

	if settings.Depot != nil && !settings.Depot.IsFinite() {
		h.handleValidationError(w, "Depot coordinates must be finite")
		return
	}
	if settings.Defaults.Drivers > 0 {
		opts := settings.Defaults
		if opts.Depot == nil {
			opts.Depot = settings.Depot
		}
		if _, err := routing.NewPlanner(opts); err != nil {
			h.handlePlanningError(w, err)
			return
		}
	}

	if err := h.DB.Settings().Update(r.Context(), &settings); err != nil {
		log.Printf("[ERROR] Failed to update settings: err=%v", err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Updated settings: depot=%t defaults=%t", settings.Depot != nil, settings.Defaults.Drivers > 0)
	h.writeJSON(w, http.StatusOK, settings)
}

// planDefaults returns the options a new plan starts from: stored defaults
// when present, the server configuration otherwise, with the stored depot
// filled in when the options carry none
func (h *Handler) planDefaults(ctx context.Context) (models.PlanOptions, error) {
	settings, err := h.DB.Settings().Get(ctx)
	if err != nil {
		return models.PlanOptions{}, err
	}

	opts := h.Defaults
	if settings.Defaults.Drivers > 0 {
		opts = settings.Defaults
	}
	if opts.Depot == nil && settings.Depot != nil {
		depot := *settings.Depot
		opts.Depot = &depot
	}
	return opts, nil
}
