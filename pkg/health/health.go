// Package health runs named dependency checks (index directory, run store,
// result cache) concurrently and serves the aggregate as liveness and
// readiness endpoints on the metrics server.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health state of a component or the harness overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check tests a single dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker manages registered health checks and runs them concurrently.
type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// PingCheck adapts a ping-style function. Optional dependencies report
// degraded instead of down when the ping fails.
func PingCheck(ping func(ctx context.Context) error, optional bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			status := StatusDown
			if optional {
				status = StatusDegraded
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// severity orders statuses so the worst component decides the report.
var severity = map[Status]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}

// Run checks every registered dependency concurrently. The report carries
// the worst component status; a harness with no checks is up.
func (c *Checker) Run(ctx context.Context) Report {
	names := c.Names()
	c.mu.RLock()
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i := range checks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			results[i] = checks[i](ctx)
			results[i].Latency = time.Since(start).Round(time.Millisecond).String()
		}(i)
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, name := range names {
		result := results[i]
		report.Components[name] = result
		if result.Status == StatusDown {
			c.logger.Warn("dependency down", "dependency", name, "message", result.Message)
		}
		if severity[result.Status] > severity[report.Status] {
			report.Status = result.Status
		}
	}
	return report
}

// LiveHandler answers 200 whenever the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 only while every component is up.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		code := http.StatusOK
		if report.Status != StatusUp {
			code = http.StatusServiceUnavailable
		}
		c.writeJSON(w, code, report)
	}
}

func (c *Checker) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.logger.Error("failed to write health response", "error", err)
	}
}
