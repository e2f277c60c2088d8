package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultHealthTimeout = 3 * time.Second

// HealthChecker reports service health for GET /health.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Pinger is implemented by the postgres connection and the redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`

	// Backends maps each backend to "ok" or its ping error.
	Backends map[string]string `json:"backends,omitempty"`
	Failing  []string          `json:"failing,omitempty"`

	// LastSweep is the date of the latest absence sweep, empty before the first.
	LastSweep string `json:"last_sweep,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}

// LastSweepFunc returns the date of the latest absence sweep, or "" if none ran.
type LastSweepFunc func(ctx context.Context) (string, error)

// Health pings the registered backends concurrently, each under timeout.
// The last sweep date is informational and never fails the check.
type Health struct {
	version string
	timeout time.Duration
	started time.Time

	mu        sync.RWMutex
	backends  map[string]Pinger
	lastSweep LastSweepFunc
}

var _ HealthChecker = (*Health)(nil)

// NewHealth creates a Health. A non-positive timeout uses the default.
func NewHealth(version string, timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &Health{
		version:  version,
		timeout:  timeout,
		started:  time.Now(),
		backends: make(map[string]Pinger),
	}
}

// Register adds a backend under name.
func (h *Health) Register(name string, p Pinger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backends[name] = p
}

// TrackSweeps makes Check report the latest sweep date.
func (h *Health) TrackSweeps(fn LastSweepFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSweep = fn
}

// Check implements HealthChecker.
func (h *Health) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	backends := make(map[string]Pinger, len(h.backends))
	for name, p := range h.backends {
		backends[name] = p
	}
	lastSweep := h.lastSweep
	h.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Backends:  make(map[string]string, len(backends)),
		CheckedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for name, p := range backends {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			result := "ok"
			if err := p.Ping(pctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			status.Backends[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for name, result := range status.Backends {
		if result != "ok" {
			status.Failing = append(status.Failing, name)
		}
	}
	sort.Strings(status.Failing)
	status.Healthy = len(status.Failing) == 0

	if lastSweep != nil {
		sctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if date, err := lastSweep(sctx); err == nil {
			status.LastSweep = date
		}
	}

	return status
}
