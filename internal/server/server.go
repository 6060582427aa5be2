package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"delivery-planner/internal/database"
	"delivery-planner/internal/handlers"
	"delivery-planner/internal/metrics"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// Config holds server configuration
type Config struct {
	Addr         string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Metrics      bool
}

// New creates a server around handler (does not start it). The server owns
// handler.DB and closes it on shutdown.
func New(cfg Config, handler *handlers.Handler) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	mux := setupRoutes(handler, cfg.Metrics)

	var root http.Handler = loggingMiddleware(corsMiddleware(mux))
	if cfg.Metrics {
		root = metrics.Middleware(root)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         handler.DB,
		addr:       cfg.Addr,
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// Handler exposes the root handler for in-process tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, withMetrics bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", handler.HandleHealthCheck)

	if withMetrics {
		mux.Handle("/metrics", metrics.Handler())
	}

	mux.HandleFunc("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleGetSettings(w, r)
		case http.MethodPut:
			handler.HandleUpdateSettings(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/stops", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleListStops(w, r)
		case http.MethodPost:
			handler.HandleCreateStop(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/stops/geocode", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		handler.HandleGeocodeBackfill(w, r)
	})

	mux.HandleFunc("/api/v1/stops/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/stops/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			handler.HandleGetStop(w, r)
		case http.MethodPut:
			handler.HandleUpdateStop(w, r)
		case http.MethodDelete:
			handler.HandleDeleteStop(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/plans", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleListPlans(w, r)
		case http.MethodPost:
			handler.HandleCreatePlan(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/plans/", handler.HandlePlanAction)

	mux.HandleFunc("/api/v1/address-search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		handler.HandleAddressSearch(w, r)
	})

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("[HTTP] %s %s status=%d took=%v", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (local dispatch tools and development)
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
