package crawler

import "sync"

// GovernorConfig carries the tuning constants for the concurrency governor.
// The zero value gets defaults tuned for polite single-site crawls; every
// knob can be overridden per crawl.
type GovernorConfig struct {
	WindowSize      int
	MinSamples      int
	GrowThreshold   float64
	ShrinkThreshold float64
	GrowFactor      float64
	ShrinkFactor    float64
	Floor           int
	CeilingFactor   float64
}

func (c GovernorConfig) withDefaults() GovernorConfig {
	if c.WindowSize <= 0 {
		c.WindowSize = 10
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.GrowThreshold <= 0 {
		c.GrowThreshold = 0.8
	}
	if c.ShrinkThreshold <= 0 {
		c.ShrinkThreshold = 0.5
	}
	if c.GrowFactor <= 1 {
		c.GrowFactor = 1.2
	}
	if c.ShrinkFactor <= 0 || c.ShrinkFactor >= 1 {
		c.ShrinkFactor = 0.8
	}
	if c.Floor <= 0 {
		c.Floor = 10
	}
	if c.CeilingFactor <= 1 {
		c.CeilingFactor = 1.5
	}
	return c
}

// Governor owns the current parallelism limit and adjusts it from a rolling
// window of per-batch success rates: it grows while the remote server
// tolerates the load and backs off under sustained failure without
// oscillating on single bad batches. Limit changes take effect for the next
// batch, never retroactively for in-flight workers.
type Governor struct {
	mu      sync.Mutex
	cfg     GovernorConfig
	ceiling int
	limit   int
	window  []float64
}

// NewGovernor builds a governor starting at maxConcurrency.
func NewGovernor(maxConcurrency int, cfg GovernorConfig) *Governor {
	cfg = cfg.withDefaults()
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Governor{
		cfg:     cfg,
		ceiling: int(float64(maxConcurrency) * cfg.CeilingFactor),
		limit:   maxConcurrency,
		window:  make([]float64, 0, cfg.WindowSize),
	}
}

// Limit returns the current parallelism limit.
func (g *Governor) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// Observe records one batch's success rate and re-evaluates the limit. No
// adjustment happens before MinSamples batches have been observed, to avoid
// reacting to noise.
func (g *Governor) Observe(successRate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.window) == g.cfg.WindowSize {
		g.window = g.window[1:]
	}
	g.window = append(g.window, successRate)

	if len(g.window) < g.cfg.MinSamples {
		return
	}

	var sum float64
	for _, r := range g.window {
		sum += r
	}
	avg := sum / float64(len(g.window))

	switch {
	case avg > g.cfg.GrowThreshold && g.limit < g.ceiling:
		grown := int(float64(g.limit) * g.cfg.GrowFactor)
		if grown > g.ceiling {
			grown = g.ceiling
		}
		g.limit = grown
	case avg < g.cfg.ShrinkThreshold && g.limit > g.cfg.Floor:
		shrunk := int(float64(g.limit) * g.cfg.ShrinkFactor)
		if shrunk < g.cfg.Floor {
			shrunk = g.cfg.Floor
		}
		g.limit = shrunk
	}
}
