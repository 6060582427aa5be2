package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"delivery-planner/internal/metrics"
	"delivery-planner/internal/models"
)

// DefaultBaseURL is the public Nominatim instance
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const userAgent = "DeliveryPlanner/1.0"

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a Nominatim client for baseURL ("" means the
// public instance) allowing at most one request per interval
func NewNominatimGeocoder(baseURL string, interval time.Duration) Geocoder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &nominatimGeocoder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Printf("[ERROR] No geocoding results found: address=%s", address)
		metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	r, err := parseResult(results[0])
	if err != nil {
		log.Printf("[ERROR] Invalid coordinates in geocoding response: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	log.Printf("[GEOCODING] Response: address=%s lat=%.6f lng=%.6f display_name=%s",
		address, r.Coords.Lat, r.Coords.Lng, r.DisplayName)
	return &r, nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			log.Printf("[GEOCODING] Success after %d attempt(s): address=%s", i+1, address)
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err

		if i < maxRetries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Printf("[GEOCODING] Retry %d/%d: address=%s backoff=%v err=%v", i+1, maxRetries, address, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("[ERROR] Geocoding failed after %d retries: address=%s err=%v", maxRetries, address, lastErr)
	return nil, lastErr
}

// Search returns up to limit candidates; entries with unparseable coordinates are skipped
func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	results, err := g.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	log.Printf("[GEOCODING] Search response: query=%s results_count=%d", query, len(results))

	out := make([]GeocodingResult, 0, len(results))
	for _, raw := range results {
		r, err := parseResult(raw)
		if err != nil {
			log.Printf("[ERROR] Skipping geocoding search result: query=%s err=%v", query, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *nominatimGeocoder) search(ctx context.Context, query string, limit int) ([]nominatimResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(query), limit)
	log.Printf("[GEOCODING] Request: query=%s url=%s", query, queryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding API request failed: query=%s err=%v", query, err)
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Geocoding API error: query=%s status=%d body=%s", query, resp.StatusCode, string(body))
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, &ErrGeocodingFailed{
			Address: query,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: query=%s err=%v", query, err)
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	return results, nil
}

func parseResult(r nominatimResponse) (GeocodingResult, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return GeocodingResult{}, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return GeocodingResult{}, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	if !c.IsFinite() {
		return GeocodingResult{}, fmt.Errorf("non-finite coordinates %q,%q", r.Lat, r.Lon)
	}
	return GeocodingResult{Coords: c, DisplayName: r.DisplayName}, nil
}
