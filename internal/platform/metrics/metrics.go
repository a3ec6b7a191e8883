package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu       sync.Mutex
	outcomes map[string]uint64
}

func New() *Collector {
	return &Collector{outcomes: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordOutcome counts an attendance gate decision, e.g. ("check_in", "LATE").
func (c *Collector) RecordOutcome(action, outcome string) {
	c.mu.Lock()
	c.outcomes[action+"."+outcome]++
	c.mu.Unlock()
}

func (c *Collector) Outcome(action, outcome string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[action+"."+outcome]
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	outcomes := make(map[string]uint64, len(c.outcomes))
	for k, v := range c.outcomes {
		outcomes[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"gateOutcomes":     outcomes,
	}
}
