// Package health implements a health-status provider for the get_api_health tool.
//
// A Checker runs a set of named probes and reports the overall status together with the
// service version and uptime. Any failing probe degrades the status without failing the
// check itself, so MCP clients always receive a report.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	// StatusOK is reported when every probe passes.
	StatusOK = "ok"
	// StatusDegraded is reported when at least one probe fails.
	StatusDegraded = "degraded"

	checkPassed = "pass"
)

// Probe checks one dependency of the service. A nil error means the dependency is healthy.
type Probe func(ctx context.Context) error

// Option configures a Checker.
type Option func(*Checker)

// Checker reports service health. It is safe for concurrent use.
type Checker struct {
	version string
	started time.Time
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	probes map[string]Probe
}

// Report is the health snapshot returned by CheckHealth.
type Report struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

var defaultProbeTimeout = 5 * time.Second

// NewChecker creates a Checker for the given service version. The uptime is measured
// from the moment NewChecker is called.
func NewChecker(version string, options ...Option) *Checker {
	c := &Checker{
		version: version,
		timeout: defaultProbeTimeout,
		now:     time.Now,
		probes:  make(map[string]Probe),
	}
	for _, opt := range options {
		opt(c)
	}
	c.started = c.now()
	return c
}

// WithProbe registers a named probe.
func WithProbe(name string, probe Probe) Option {
	return func(c *Checker) {
		c.probes[name] = probe
	}
}

// WithProbeTimeout bounds how long each probe may run.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// AddProbe registers or replaces a named probe after construction.
func (c *Checker) AddProbe(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// CheckHealth runs every probe and returns a Report. It implements
// transport.HealthChecker and only fails when ctx is done before the probes finish.
func (c *Checker) CheckHealth(ctx context.Context) (any, error) {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()
	sort.Strings(names)

	report := Report{
		Status:  StatusOK,
		Version: c.version,
	}
	if len(names) > 0 {
		report.Checks = make(map[string]string, len(names))
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := probes[name](probeCtx)
		cancel()
		if err != nil {
			report.Status = StatusDegraded
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = checkPassed
	}

	now := c.now()
	report.Uptime = now.Sub(c.started).Round(time.Second).String()
	report.Timestamp = now.UTC().Format(time.RFC3339)
	return report, nil
}
