package resilience

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig tunes a CircuitBreaker. Zero values fall back to sensible defaults.
type BreakerConfig struct {
	Window            time.Duration
	Buckets           int
	MinSamples        int
	FailureRateOpen   float64
	HalfOpenAfter     time.Duration
	MaxHalfOpenProbes int
}

// CircuitBreaker opens when the failure rate over a rolling window crosses a threshold
// and lets a limited number of probes through after a cool-down.
type CircuitBreaker struct {
	mu sync.Mutex

	minSamples        int
	failureRateOpen   float64
	halfOpenAfter     time.Duration
	maxHalfOpenProbes int
	now               func() time.Time
	onStateChange     func(open bool)

	state          breakerState
	openedAt       time.Time
	halfOpenProbes int
	window         *slidingWindow
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Buckets <= 0 {
		cfg.Buckets = 6
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	if cfg.FailureRateOpen <= 0 || cfg.FailureRateOpen > 1 {
		cfg.FailureRateOpen = 0.5
	}
	if cfg.HalfOpenAfter <= 0 {
		cfg.HalfOpenAfter = 30 * time.Second
	}
	if cfg.MaxHalfOpenProbes <= 0 {
		cfg.MaxHalfOpenProbes = 1
	}
	b := &CircuitBreaker{
		minSamples:        cfg.MinSamples,
		failureRateOpen:   cfg.FailureRateOpen,
		halfOpenAfter:     cfg.HalfOpenAfter,
		maxHalfOpenProbes: cfg.MaxHalfOpenProbes,
		now:               time.Now,
		onStateChange:     func(bool) {},
	}
	b.window = newSlidingWindow(cfg.Window, cfg.Buckets, func() time.Time { return b.now() })
	return b
}

// WithClock replaces the time source. Intended for tests.
func (c *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	c.now = now
	return c
}

// OnStateChange registers a hook called with true when the breaker opens and false when it closes.
func (c *CircuitBreaker) OnStateChange(fn func(open bool)) *CircuitBreaker {
	c.onStateChange = fn
	return c
}

// Allow reports whether a request may go upstream.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateOpen:
		if c.now().Sub(c.openedAt) < c.halfOpenAfter {
			return false
		}
		c.state = stateHalfOpen
		c.halfOpenProbes = 0
		fallthrough
	case stateHalfOpen:
		if c.halfOpenProbes >= c.maxHalfOpenProbes {
			return false
		}
		c.halfOpenProbes++
	}
	return true
}

// RecordResult feeds one outcome into the rolling window.
func (c *CircuitBreaker) RecordResult(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.add(success)

	switch c.state {
	case stateClosed:
		total, failures := c.window.stats()
		if total >= c.minSamples && float64(failures)/float64(total) >= c.failureRateOpen {
			c.open()
		}
	case stateHalfOpen:
		if !success {
			c.open()
		} else if c.halfOpenProbes >= c.maxHalfOpenProbes {
			c.state = stateClosed
			c.openedAt = time.Time{}
			c.window.reset()
			c.onStateChange(false)
		}
	}
}

// Abandon hands back a half-open probe slot when the request was dropped before it
// produced an outcome.
func (c *CircuitBreaker) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateHalfOpen && c.halfOpenProbes > 0 {
		c.halfOpenProbes--
	}
}

// State returns "closed", "open" or "half-open".
func (c *CircuitBreaker) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

func (c *CircuitBreaker) open() {
	c.state = stateOpen
	c.openedAt = c.now()
	c.onStateChange(true)
}

type bucket struct {
	start         time.Time
	success, fail int
}

// slidingWindow keeps success/failure counts in fixed time buckets.
type slidingWindow struct {
	size     time.Duration
	interval time.Duration
	data     []bucket
	now      func() time.Time
}

func newSlidingWindow(size time.Duration, buckets int, now func() time.Time) *slidingWindow {
	return &slidingWindow{
		size:     size,
		interval: size / time.Duration(buckets),
		data:     make([]bucket, buckets),
		now:      now,
	}
}

func (w *slidingWindow) add(success bool) {
	now := w.now()
	start := now.Truncate(w.interval)
	idx := int(start.UnixNano()/w.interval.Nanoseconds()) % len(w.data)
	if !w.data[idx].start.Equal(start) {
		w.data[idx] = bucket{start: start}
	}
	if success {
		w.data[idx].success++
	} else {
		w.data[idx].fail++
	}
}

func (w *slidingWindow) stats() (total, failures int) {
	cutoff := w.now().Add(-w.size)
	for _, b := range w.data {
		if b.start.Before(cutoff) {
			continue
		}
		total += b.success + b.fail
		failures += b.fail
	}
	return total, failures
}

func (w *slidingWindow) reset() {
	for i := range w.data {
		w.data[i] = bucket{}
	}
}
