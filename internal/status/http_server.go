// Package status serves the live state of a running campaign over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/campaign"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServer struct {
	mux     *http.ServeMux
	tracker *campaign.Tracker
	srv     *http.Server
}

// NewHTTPServer exposes tracker state and the collectors gathered by metrics
func NewHTTPServer(tracker *campaign.Tracker, metrics prometheus.Gatherer) *HTTPServer {
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		tracker: tracker,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/campaign", s.handleCampaign)
	s.mux.HandleFunc("/v1/campaign/variables", s.handleVariables)
	s.mux.HandleFunc("/v1/campaign/errors", s.handleErrors)
	if metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	}
	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// Serve accepts connections on ln until Shutdown is called
func (s *HTTPServer) Serve(ln net.Listener) error {
	logger.Info("status server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleCampaign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.tracker.View())
}

func (s *HTTPServer) handleVariables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	vars := s.tracker.Variables()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"variables": vars,
		"count":     len(vars),
	})
}

func (s *HTTPServer) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	errs := s.tracker.Errors()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"errors": errs,
		"count":  len(errs),
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
