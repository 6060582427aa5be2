package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"delivery-planner/internal/geocoding"
	"delivery-planner/internal/models"
)

// StopListResponse represents the list response
type StopListResponse struct {
	Stops []models.Stop `json:"stops"`
	Total int           `json:"total"`
}

// stopRequest is the body of create and update. Coordinates are optional;
// without them the address is geocoded.
type stopRequest struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	City    string   `json:"city"`
	Days    []string `json:"days"`
	Active  *bool    `json:"active"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func (req *stopRequest) validate() ([]models.Weekday, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	req.City = strings.TrimSpace(req.City)
	if req.Name == "" || req.Address == "" {
		return nil, fmt.Errorf("Name and address are required")
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		return nil, fmt.Errorf("lat and lng must be given together")
	}
	if req.Lat != nil && !(models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}).IsFinite() {
		return nil, fmt.Errorf("coordinates must be finite")
	}

	days := make([]models.Weekday, 0, len(req.Days))
	for _, d := range req.Days {
		day, err := models.ParseWeekday(d)
		if err != nil {
			return nil, err
		}
		if day == models.AllDays {
			continue
		}
		days = append(days, day)
	}
	return days, nil
}

// HandleListStops handles GET /api/v1/stops
func (h *Handler) HandleListStops(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	log.Printf("[HTTP] GET /api/v1/stops: search=%s", search)

	stops, err := h.DB.Stops().List(r.Context(), search)
	if err != nil {
		log.Printf("[ERROR] Failed to list stops: search=%s err=%v", search, err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Listed stops: count=%d", len(stops))
	h.writeJSON(w, http.StatusOK, StopListResponse{Stops: stops, Total: len(stops)})
}

// HandleGetStop handles GET /api/v1/stops/{id}
func (h *Handler) HandleGetStop(w http.ResponseWriter, r *http.Request) {
	id, idStr, err := pathID(r.URL.Path, "/api/v1/stops/")
	if err != nil {
		log.Printf("[HTTP] GET /api/v1/stops/{id}: invalid_id=%s err=%v", idStr, err)
		h.handleValidationError(w, "Invalid stop ID")
		return
	}

	stop, err := h.DB.Stops().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to get stop: id=%d err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}
	if stop == nil {
		h.handleNotFound(w, "Stop not found")
		return
	}

	h.writeJSON(w, http.StatusOK, stop)
}

// HandleCreateStop handles POST /api/v1/stops
func (h *Handler) HandleCreateStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/stops: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	days, err := req.validate()
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	stop := &models.Stop{
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
		Days:    days,
		Active:  req.Active == nil || *req.Active,
	}
	if !h.resolveCoords(w, r, stop, req) {
		return
	}

	log.Printf("[HTTP] POST /api/v1/stops: name=%s address=%s", stop.Name, stop.Address)
	stop, err = h.DB.Stops().Create(r.Context(), stop)
	if err != nil {
		log.Printf("[ERROR] Failed to create stop: name=%s err=%v", req.Name, err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Created stop: id=%d name=%s", stop.ID, stop.Name)
	h.writeJSON(w, http.StatusCreated, stop)
}

// HandleUpdateStop handles PUT /api/v1/stops/{id}. The address is geocoded
// again only when it changed and no coordinates were supplied.
func (h *Handler) HandleUpdateStop(w http.ResponseWriter, r *http.Request) {
	id, idStr, err := pathID(r.URL.Path, "/api/v1/stops/")
	if err != nil {
		log.Printf("[HTTP] PUT /api/v1/stops/{id}: invalid_id=%s err=%v", idStr, err)
		h.handleValidationError(w, "Invalid stop ID")
		return
	}

	existing, err := h.DB.Stops().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to get stop for update: id=%d err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}
	if existing == nil {
		h.handleNotFound(w, "Stop not found")
		return
	}

	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] PUT /api/v1/stops/{id}: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	days, err := req.validate()
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	addressChanged := req.Address != existing.Address || req.City != existing.City
	existing.Name = req.Name
	existing.Address = req.Address
	existing.City = req.City
	existing.Days = days
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if req.Lat != nil || addressChanged {
		if !h.resolveCoords(w, r, existing, req) {
			return
		}
	}

	updated, err := h.DB.Stops().Update(r.Context(), existing)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Stop not found")
			return
		}
		log.Printf("[ERROR] Failed to update stop: id=%d err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Updated stop: id=%d", id)
	h.writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteStop handles DELETE /api/v1/stops/{id}
func (h *Handler) HandleDeleteStop(w http.ResponseWriter, r *http.Request) {
	id, idStr, err := pathID(r.URL.Path, "/api/v1/stops/")
	if err != nil {
		log.Printf("[HTTP] DELETE /api/v1/stops/{id}: invalid_id=%s err=%v", idStr, err)
		h.handleValidationError(w, "Invalid stop ID")
		return
	}

	if err := h.DB.Stops().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Stop not found")
			return
		}
		log.Printf("[ERROR] Failed to delete stop: id=%d err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Deleted stop: id=%d", id)
	w.WriteHeader(http.StatusNoContent)
}

// resolveCoords fills stop coordinates from the request or the geocoder.
// It writes the error response and returns false on failure.
func (h *Handler) resolveCoords(w http.ResponseWriter, r *http.Request, stop *models.Stop, req stopRequest) bool {
	if req.Lat != nil {
		stop.SetCoords(models.Coordinates{Lat: *req.Lat, Lng: *req.Lng})
		return true
	}

	query := geocoding.QueryFor(stop)
	result, err := h.Geocoder.GeocodeWithRetry(r.Context(), query, h.geocodeRetries())
	if err != nil {
		log.Printf("[ERROR] Failed to geocode stop address: address=%s err=%v", query, err)
		h.handleGeocodingError(w, err)
		return false
	}
	stop.SetCoords(result.Coords)
	return true
}
