package ai

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// RetryConfig bounds how often a failed completion call is repeated.
type RetryConfig struct {
	// MaxRetries is the number of repeats after the first attempt. 0 disables retry.
	MaxRetries        int           `yaml:"max_retries" json:"maxRetries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initialBackoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"maxBackoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoffMultiplier"`
	JitterFraction    float64       `yaml:"jitter_fraction" json:"jitterFraction"`
}

// DefaultRetryConfig returns two retries with exponential backoff from 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 2.0
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

// Backoff returns the delay before retry number attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	base := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if base > float64(c.MaxBackoff) {
		base = float64(c.MaxBackoff)
	}
	if c.JitterFraction > 0 {
		base += base * c.JitterFraction * (cryptoFloat64()*2 - 1)
		if base < 0 {
			base = 0
		}
	}
	return time.Duration(base)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cryptoFloat64 returns a uniform float64 in [0.0, 1.0).
func cryptoFloat64() float64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return float64(binary.BigEndian.Uint64(b[:])>>11) / float64(1<<53)
}
