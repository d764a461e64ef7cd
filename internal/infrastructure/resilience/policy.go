package resilience

import "time"

// Config drives one Executor. Every remote dependency of the retrieval
// pipeline (search backends, advisor, NATS) shares it.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// RetryBudget is the total backoff an operation sleeps when every attempt
// fails with a retryable error.
func (c Config) RetryBudget() time.Duration {
	n := c.normalize()
	var total time.Duration
	backoff := n.RetryInitialBackoff
	for attempt := 1; attempt < n.RetryMaxAttempts; attempt++ {
		total += min(backoff, n.RetryMaxBackoff)
		backoff = min(time.Duration(float64(backoff)*n.RetryMultiplier), n.RetryMaxBackoff)
	}
	return total
}

// WithinDeadline lowers RetryMaxAttempts until the retry budget leaves at
// least half of deadline for the calls themselves. It never goes below one
// attempt; a non-positive deadline leaves c unchanged.
func (c Config) WithinDeadline(deadline time.Duration) Config {
	out := c.normalize()
	if deadline <= 0 {
		return out
	}
	for out.RetryMaxAttempts > 1 && out.RetryBudget() > deadline/2 {
		out.RetryMaxAttempts--
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
