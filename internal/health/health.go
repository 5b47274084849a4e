// Package health serves the daemon's liveness and readiness probes.
//
// /healthz answers 200 for any process able to serve HTTP. /readyz runs the
// registered dependency checks (history store, model files, ...) and answers
// 503 until every one of them passes. Each check's outcome and latency is
// reported in the JSON body.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds one dependency probe.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency is
// usable and must respect context cancellation.
type Checker struct {
	// Name keys the check in the readiness response.
	Name string

	Check func(ctx context.Context) error
}

// checkResult is one entry in the readiness response body.
type checkResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The check list is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates checkers, in order, on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	h := &Handler{checkers: make([]Checker, len(checkers))}
	copy(h.checkers, checkers)
	return h
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())

	res := response{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// runChecks evaluates every checker under its own deadline and reports
// whether all of them passed.
func (h *Handler) runChecks(ctx context.Context) (map[string]checkResult, bool) {
	checks := make(map[string]checkResult, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		started := time.Now()
		err := c.Check(probeCtx)
		latency := time.Since(started)
		cancel()

		cr := checkResult{Status: "ok", Latency: latency.Round(time.Microsecond).String()}
		if err != nil {
			cr.Status = "fail"
			cr.Error = err.Error()
			ready = false
		}
		checks[c.Name] = cr
	}
	return checks, ready
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
