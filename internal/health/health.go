// Package health runs readiness checks for an autodev session.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// CheckTimeout bounds a single check.
const CheckTimeout = 5 * time.Second

// CheckFunc is a function that checks a dependency's health.
type CheckFunc func(ctx context.Context) Status

// Checker manages health checks for all dependencies.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	last   map[string]Status
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		last:   make(map[string]Status),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes all health checks concurrently and remembers the results.
func (c *Checker) RunAll(ctx context.Context) map[string]Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]Status, len(checks))
	var mu sync.Mutex
	var g errgroup.Group
	for name, fn := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			s := fn(checkCtx)
			mu.Lock()
			results[name] = s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for name, s := range results {
		if s != StatusOK {
			c.logger.Warn().Str("check", name).Str("status", string(s)).Msg("health check not ok")
		}
	}

	c.mu.Lock()
	c.last = results
	c.mu.Unlock()
	return results
}

// Last returns the results of the previous RunAll.
func (c *Checker) Last() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Status, len(c.last))
	for k, v := range c.last {
		out[k] = v
	}
	return out
}

// Ready reports whether no check in results is down.
func Ready(results map[string]Status) bool {
	for _, s := range results {
		if s == StatusDown {
			return false
		}
	}
	return true
}

// IsReady runs every check and returns true if none is down.
func (c *Checker) IsReady(ctx context.Context) bool {
	return Ready(c.RunAll(ctx))
}

// RepoCheck is down when root is not a directory and degraded when it is not
// yet a git repository; the session initializes one in that case.
func RepoCheck(root string, isRepo func(ctx context.Context, root string) bool) CheckFunc {
	return func(ctx context.Context) Status {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return StatusDown
		}
		if isRepo != nil && !isRepo(ctx, root) {
			return StatusDegraded
		}
		return StatusOK
	}
}

// OracleCheck is down when no model is configured for the provider.
func OracleCheck(provider, model string) CheckFunc {
	return func(context.Context) Status {
		if provider == "" || model == "" {
			return StatusDown
		}
		return StatusOK
	}
}
