package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// latencyBounds are the upper edges, in milliseconds, of the request latency buckets.
var latencyBounds = [...]int64{5, 25, 100, 250, 1000}

// Collector keeps process-lifetime counters for the HTTP surface and the leave workflow.
type Collector struct {
	requests    atomic.Uint64
	serverErrs  atomic.Uint64
	throttled   atomic.Uint64
	totalMillis atomic.Uint64
	latency     [len(latencyBounds) + 1]atomic.Uint64

	mu          sync.Mutex
	byClass     map[string]uint64
	transitions map[string]uint64
}

func New() *Collector {
	return &Collector{byClass: map[string]uint64{}, transitions: map[string]uint64{}}
}

// Record counts one finished HTTP request.
func (c *Collector) Record(status int, took time.Duration) {
	c.requests.Add(1)
	switch {
	case status == http.StatusTooManyRequests:
		c.throttled.Add(1)
	case status >= http.StatusInternalServerError:
		c.serverErrs.Add(1)
	}
	ms := took.Milliseconds()
	c.totalMillis.Add(uint64(ms))
	c.latency[bucket(ms)].Add(1)

	class := strconv.Itoa(status/100) + "xx"
	c.mu.Lock()
	c.byClass[class]++
	c.mu.Unlock()
}

// Transition counts one committed leave request transition.
func (c *Collector) Transition(action string) {
	c.mu.Lock()
	c.transitions[action]++
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := c.requests.Load()
	totalMs := c.totalMillis.Load()
	var avg float64
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	latency := make(map[string]uint64, len(c.latency))
	for i := range c.latency {
		latency[bucketLabel(i)] = c.latency[i].Load()
	}

	c.mu.Lock()
	classes := copyCounts(c.byClass)
	transitions := copyCounts(c.transitions)
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":         total,
		"errorsTotal":           c.serverErrs.Load(),
		"rateLimitedTotal":      c.throttled.Load(),
		"avgDurationMs":         avg,
		"totalDurationMs":       totalMs,
		"requestsByStatusClass": classes,
		"latencyMs":             latency,
		"leaveTransitionsTotal": transitions,
	}
}

func bucket(ms int64) int {
	for i, bound := range latencyBounds {
		if ms <= bound {
			return i
		}
	}
	return len(latencyBounds)
}

func bucketLabel(i int) string {
	if i == len(latencyBounds) {
		return "+Inf"
	}
	return "le" + strconv.FormatInt(latencyBounds[i], 10)
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
