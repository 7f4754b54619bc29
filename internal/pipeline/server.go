package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keweikao/sales-transcribe/internal/logging"
)

// Server exposes a Pipeline's health, warm-up, and metrics endpoints for
// container-deployed use. It never serves the transcription operation
// itself over HTTP; process() stays a direct library call from cmd/.
type Server struct {
	bindAddr string
	pipeline *Pipeline
	logger   *logging.ContextLogger
	server   *http.Server
}

// NewServer builds an HTTP surface bound to addr for pipeline.
func NewServer(addr string, p *Pipeline, log *logging.Logger) *Server {
	return &Server{bindAddr: addr, pipeline: p, logger: log.With("pipeline-http")}
}

// Start serves until the process is stopped or Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/warmup", s.handleWarmup)
	if s.pipeline.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.pipeline.metrics.Gatherer(), promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         s.bindAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP surface on %s", s.bindAddr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the HTTP surface down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// handleWarmup triggers the worker pool's warm-up pass on demand, useful
// for container readiness probes that want cold-start cost paid before
// traffic is routed. Idempotent; safe to call more than once.
func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.pipeline.Warmup()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "warmed"})
}
