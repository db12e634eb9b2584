// Package httpapi exposes the concierge's HTTP surface: bundle generation,
// deal reads, watches, chat, and the live events channel.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/bundle"
	"github.com/tripdeck/concierge/internal/dealcache"
	"github.com/tripdeck/concierge/internal/intent"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/registry"
	"github.com/tripdeck/concierge/internal/schema"
)

// timeNow is swapped by tests.
var timeNow = time.Now

// Options carries the server's collaborators and tunables.
type Options struct {
	ServiceName    string
	Version        string
	Addr           string
	RequestTimeout time.Duration

	Engine    *bundle.Engine
	Cache     *dealcache.DealCache
	Extractor *intent.Extractor
	Registry  *registry.Registry
	Prefs     persistence.PreferenceRepo
}

// Server is the concierge HTTP server.
type Server struct {
	opts   Options
	router *mux.Router
	http   *http.Server
}

// NewServer wires routes and middleware.
func NewServer(opts Options) *Server {
	s := &Server{opts: opts}

	r := mux.NewRouter()
	r.Use(traceMiddleware)
	r.Use(loggingMiddleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))
	r.Use(corsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/concierge/bundles", s.handleGenerateBundles).Methods(http.MethodPost)
	r.HandleFunc("/concierge/bundles/user/{user_id}", s.handleUserBundles).Methods(http.MethodGet)
	r.HandleFunc("/concierge/watch", s.handleCreateWatch).Methods(http.MethodPost)
	r.HandleFunc("/concierge/deals", s.handleDeals).Methods(http.MethodGet)
	r.HandleFunc("/concierge/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Preflight requests must match a route for the middleware chain to run;
	// corsMiddleware short-circuits them.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(schema.APIResponse{
		Success: true,
		Data:    data,
		TraceID: TraceID(r.Context()),
	}); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(schema.APIResponse{
		Success: false,
		Error:   &schema.APIError{Code: code, Message: message},
		TraceID: TraceID(r.Context()),
	}); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}
