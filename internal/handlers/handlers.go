package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"delivery-planner/internal/database"
	"delivery-planner/internal/geocoding"
	"delivery-planner/internal/models"
	"delivery-planner/internal/routing"
)

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB             database.DataStore
	Geocoder       geocoding.Geocoder
	Defaults       models.PlanOptions
	GeocodeRetries int
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
}

// handlePlanningError maps planner errors: bad input is a 400, anything the
// planner could not recover from is a 422
func (h *Handler) handlePlanningError(w http.ResponseWriter, err error) {
	var inputErr *routing.InputError
	if errors.As(err, &inputErr) {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", inputErr.Reason, nil)
		return
	}
	var geomErr *routing.DegenerateGeometryError
	if errors.As(err, &geomErr) {
		h.writeError(w, http.StatusUnprocessableEntity, "PLANNING_FAILED", geomErr.Reason, map[string]interface{}{
			"strategy": geomErr.Strategy,
		})
		return
	}
	h.handleInternalError(w, err)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

func (h *Handler) geocodeRetries() int {
	if h.GeocodeRetries < 1 {
		return 3
	}
	return h.GeocodeRetries
}

// pathID parses the int64 id that follows prefix in path
func pathID(path, prefix string) (int64, string, error) {
	idStr := strings.TrimPrefix(path, prefix)
	idStr = strings.Trim(idStr, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	return id, idStr, err
}

// planPath splits /api/v1/plans/{id}[/{action}] into id and action
func planPath(path string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, "/api/v1/plans/"), "/")
	id, action, _ = strings.Cut(rest, "/")
	return id, action
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
	})
}
