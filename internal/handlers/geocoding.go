package handlers

import (
	"log"
	"net/http"

	"delivery-planner/internal/geocoding"
)

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("address")
	log.Printf("[HTTP] GET /api/v1/address-search: query=%s", query)

	if len(query) < 4 {
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, 5)
	if err != nil {
		log.Printf("[ERROR] Failed to search addresses: query=%s err=%v", query, err)
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	log.Printf("[HTTP] GET /api/v1/address-search: query=%s results_count=%d", query, len(results))
	h.writeJSON(w, http.StatusOK, results)
}

// HandleGeocodeBackfill handles POST /api/v1/stops/geocode
func (h *Handler) HandleGeocodeBackfill(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] POST /api/v1/stops/geocode")

	report, err := geocoding.Backfill(r.Context(), h.DB.Stops(), h.Geocoder, h.geocodeRetries())
	if err != nil {
		log.Printf("[ERROR] Geocode backfill failed: resolved=%d err=%v", report.Resolved, err)
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}
