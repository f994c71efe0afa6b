package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/bridge"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/cuemby/vassal-bridge/pkg/metrics"
	"github.com/cuemby/vassal-bridge/pkg/types"
)

// Version is reported by the /health endpoint.
var Version = "dev"

// StatusSource reports where the bridge is in the workload's lifecycle.
type StatusSource interface {
	Phase() bridge.Phase
	Container() *types.ContainerHandle
}

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	source StatusSource
	mux    *http.ServeMux
	server *http.Server
}

// NewHealthServer creates a new health check HTTP server
func NewHealthServer(source StatusSource) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		source: source,
		mux:    mux,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	// Register endpoints
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start serves the endpoints on addr until Stop is called
func (hs *HealthServer) Start(addr string) error {
	hs.server.Addr = addr

	apiLog := log.WithComponent("api")
	apiLog.Info().Str("addr", addr).Msg("serving health and metrics")
	if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down
func (hs *HealthServer) Stop(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
	}

	writeJSON(w, http.StatusOK, response)
}

// readyHandler implements the /ready endpoint
// Ready means the container is running and attached
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.source == nil {
		checks["phase"] = "not initialized"
		ready = false
		message = "Bridge not initialized"
	} else {
		phase := hs.source.Phase()
		checks["phase"] = string(phase)
		if phase != bridge.PhaseRunning {
			ready = false
			message = "Container not running"
		}

		if h := hs.source.Container(); h != nil {
			checks["container"] = h.ShortID()
		} else {
			checks["container"] = "none"
		}
	}

	status := "ready"
	statusCode := http.StatusOK

	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
