package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the health check can reach
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a ping function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// Checker serves liveness, readiness and dependency health
type Checker struct {
	checks    map[string]Pinger
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker. Nil dependencies are skipped.
func NewChecker(version string, checks map[string]Pinger) *Checker {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &Checker{
		checks:    active,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(g *echo.Group) {
	g.GET("/health", c.Health)
	g.GET("/health/live", c.Live)
	g.GET("/health/ready", c.Ready)
}

// HealthStatus is the body of /health
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult is the outcome of pinging one dependency
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	probeTimeout    = 3 * time.Second
)

// probe pings every dependency and reports whether all answered.
func (c *Checker) probe(ctx context.Context) (map[string]*CheckResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	results := make(map[string]*CheckResult, len(c.checks))
	ok := true
	for name, p := range c.checks {
		start := time.Now()
		if err := p.PingContext(ctx); err != nil {
			ok = false
			results[name] = &CheckResult{Status: statusUnhealthy, Message: err.Error()}
			continue
		}
		results[name] = &CheckResult{Status: statusHealthy, Latency: time.Since(start).String()}
	}
	return results, ok
}

// Health pings every dependency and answers 503 when any is down
func (c *Checker) Health(ctx echo.Context) error {
	checks, ok := c.probe(ctx.Request().Context())

	body := &HealthStatus{
		Status:     statusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now(),
	}
	if !ok {
		body.Status = statusUnhealthy
		return ctx.JSON(http.StatusServiceUnavailable, body)
	}
	return ctx.JSON(http.StatusOK, body)
}

// Live answers as long as the process serves requests
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready answers 200 once startup finished and every dependency responds
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}
	if _, ok := c.probe(ctx.Request().Context()); !ok {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
