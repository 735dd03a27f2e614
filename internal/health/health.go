// Package health exposes liveness and readiness endpoints for the
// auction service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/stepweaver/silent-auction/internal/clock"
)

// checkTimeout bounds each readiness probe's dependency checks.
const checkTimeout = 5 * time.Second

// Report is the JSON body returned by both endpoints.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Check is a named dependency probe; a non-nil error marks the
// service not ready.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Handler serves /healthz and /readyz. Readiness requires SetReady(true)
// and every registered check passing.
type Handler struct {
	mu     sync.RWMutex
	ready  bool
	checks []Check
	clock  clock.Clock
}

// NewHandler returns a Handler with the given dependency checks.
func NewHandler(clk clock.Clock, checks ...Check) *Handler {
	return &Handler{checks: checks, clock: clk}
}

// SetReady marks the service ready (or not) to receive traffic.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Live reports process liveness; it always succeeds while the process
// can serve HTTP.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, Report{Status: "ok", Timestamp: h.stamp()})
}

// Ready reports readiness: the ready flag plus every dependency check.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := h.ready
	h.mu.RUnlock()

	if !ready {
		h.write(w, http.StatusServiceUnavailable, Report{Status: "not_ready", Timestamp: h.stamp()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	code := http.StatusOK
	status := "ready"
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			checks[c.Name] = err.Error()
			code = http.StatusServiceUnavailable
			status = "not_ready"
			continue
		}
		checks[c.Name] = "ok"
	}

	h.write(w, code, Report{Status: status, Checks: checks, Timestamp: h.stamp()})
}

func (h *Handler) stamp() string {
	return h.clock.Now().UTC().Format(time.RFC3339)
}

func (h *Handler) write(w http.ResponseWriter, code int, rep Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
