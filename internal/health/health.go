// Package health provides HTTP liveness and readiness handlers.
//
//   - /healthz is a liveness probe and always returns 200 OK.
//   - /readyz returns 200 only when every registered check passes.
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map with the result of each named check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds the time a single readiness check may take.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It must return nil when the dependency is
// healthy and respect context cancellation.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

// Handler serves the /healthz and /readyz endpoints. Register all checks
// before serving; the check list is not safe to mutate concurrently with
// requests.
type Handler struct {
	checks []namedCheck
}

// New creates an empty [Handler]. Add readiness checks with [Handler.Add].
func New() *Handler {
	return &Handler{}
}

// Add registers a named readiness check. Checks run sequentially in
// registration order on each /readyz request.
func (h *Handler) Add(name string, c Check) {
	h.checks = append(h.checks, namedCheck{name: name, check: c})
}

// Healthz always returns 200 OK. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, checkResult{Status: "ok"})
}

// Readyz returns 200 only when every registered check passes. Each check
// gets a context with a [checkTimeout] deadline derived from the request
// context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := checkResult{
		Status: "ok",
		Checks: make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK

	for _, nc := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := nc.check(ctx)
		cancel()

		if err != nil {
			res.Checks[nc.name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			res.Checks[nc.name] = "ok"
		}
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

type checkResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
