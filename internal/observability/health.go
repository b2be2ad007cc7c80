package observability

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HealthChecker backs the /healthz and /readyz probes. Liveness is
// process-up; readiness is the startup gate plus every registered
// dependency probe passing.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time

	mu     sync.RWMutex
	probes map[string]func() error
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		probes:    make(map[string]func() error),
	}
}

// SetReady marks the service as ready to accept traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterProbe adds a named dependency check evaluated on every
// readiness request. Probes must be fast; they run inline.
func (h *HealthChecker) RegisterProbe(name string, probe func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// IsReady reports whether the startup gate is open and all probes pass.
func (h *HealthChecker) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, errMsg := range h.runProbes() {
		if errMsg != "" {
			return false
		}
	}
	return true
}

// runProbes returns probe name -> error message ("" when healthy).
func (h *HealthChecker) runProbes() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if err := probe(); err != nil {
			results[name] = err.Error()
		} else {
			results[name] = ""
		}
	}
	return results
}

// LivenessHandler returns HTTP 200 if the process is alive.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler returns HTTP 200 once startup has completed and every
// dependency probe passes, 503 otherwise with the failing probes named.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	probes := h.runProbes()
	healthy := h.ready.Load()
	for _, errMsg := range probes {
		if errMsg != "" {
			healthy = false
		}
	}

	status := "ready"
	code := http.StatusOK
	if !healthy {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"probes": probes,
	})
}
