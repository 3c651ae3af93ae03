package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokenlens/tokenlens/analysis"
	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/events"
)

// Server exposes the analysis pipeline over HTTP, plus health and
// prometheus metrics endpoints.
type Server struct {
	port            string
	analysisService *analysis.Service
	chains          config.ChainTable
	server          *http.Server

	subscription events.ISubscription

	mu           sync.RWMutex
	lastAnalysis time.Time
}

// New creates the HTTP server
func New(port string, analysisService *analysis.Service, chains config.ChainTable) *Server {
	return &Server{
		port:            port,
		analysisService: analysisService,
		chains:          chains,
	}
}

// Start implements core.Interface
func (s *Server) Start(ctx context.Context) error {
	// Track analysis completions for the health endpoint
	s.subscription = s.analysisService.SubscribeOnAnalysis().Watch(ctx, func() {
		s.mu.Lock()
		s.lastAnalysis = time.Now()
		s.mu.Unlock()
	}, false)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/analyze", s.handleAnalyze).Methods("GET")
	router.HandleFunc("/api/v1/chains", s.handleChains).Methods("GET")
	router.HandleFunc("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    ":" + s.port,
		Handler: router,
	}

	log.Printf("Server starting at http://localhost:%s", s.port)
	log.Println("Prometheus metrics available at /metrics endpoint")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop implements core.Interface
func (s *Server) Stop() {
	if s.subscription != nil {
		s.subscription.Cancel()
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}
}
