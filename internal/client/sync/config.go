package sync

import "time"

// Config tunes the sync driver. Backoff cap and base are configuration, not
// protocol: a pass always interprets remote results the same way, these only
// govern when a transiently failed operation is attempted again.
type Config struct {
	// MaxRetries is the transient-failure budget per operation. Once the
	// retry count reaches it the operation is marked failed and left for
	// operator inspection.
	MaxRetries int

	// BackoffBase is the delay after the first transient failure. Each
	// further failure doubles it.
	BackoffBase time.Duration

	// BackoffCap bounds the exponential growth.
	BackoffCap time.Duration

	// EntityParallelism bounds how many distinct entities are replayed
	// concurrently. Operations for one entity are always strictly
	// sequential regardless of this value.
	EntityParallelism int
}

// DefaultConfig returns the driver defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        5,
		BackoffBase:       time.Second,
		BackoffCap:        5 * time.Minute,
		EntityParallelism: 4,
	}
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = def.BackoffCap
	}
	if c.EntityParallelism <= 0 {
		c.EntityParallelism = def.EntityParallelism
	}
	return c
}

// backoffDelay computes the capped exponential delay before the next attempt
// of an operation that has failed transiently retryCount times.
func (c Config) backoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	delay := c.BackoffBase
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= c.BackoffCap {
			return c.BackoffCap
		}
	}
	if delay > c.BackoffCap {
		return c.BackoffCap
	}
	return delay
}
