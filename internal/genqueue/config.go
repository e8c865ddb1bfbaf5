package genqueue

import "time"

// Config tunes queue admission, retry, and concurrency behavior.
type Config struct {
	MaxConcurrentPerAgent int
	BatchSize             int
	MaxRetryAttempts      int
	RetryDelay            time.Duration
	RateLimitMinDelay     time.Duration // zero disables the per-agent minimum delay; the concurrency cap still applies
	MaxQueueSize          int
	WorkersPerAgent       int
}

// DefaultConfig returns the stated defaults: 3, 50, 3, 1s, 100ms, 10000, 2.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerAgent: 3,
		BatchSize:             50,
		MaxRetryAttempts:      3,
		RetryDelay:            time.Second,
		RateLimitMinDelay:     100 * time.Millisecond,
		MaxQueueSize:          10000,
		WorkersPerAgent:       2,
	}
}

// Stats reports queue occupancy and outcome counters.
type Stats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
