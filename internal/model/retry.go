package model

import "time"

// RetryConfig defines retry behavior for a fetch
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	Timeout           time.Duration `json:"timeout"` // per attempt
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"` // 1.0 keeps the delay fixed
}

// Retry presets of the two observed designs
var (
	// BaselineRetry makes a single attempt
	BaselineRetry = RetryConfig{
		MaxAttempts:       1,
		Timeout:           10 * time.Second,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.0,
	}
	// RevisedRetry retries once after a fixed one second pause
	RevisedRetry = RetryConfig{
		MaxAttempts:       2,
		Timeout:           10 * time.Second,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.0,
	}
)
