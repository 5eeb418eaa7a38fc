package service

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls backoff between submission attempts. Delay for
// attempt n is drawn uniformly from [0, BaseDelay * Multiplier^(n-1)]
// (full jitter). Rand is injectable so tests run with a fixed source.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Rand        func() float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
	}
}

// Delay returns the backoff to sleep after the given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ceiling := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))

	r := p.Rand
	if r == nil {
		r = rand.Float64
	}
	return time.Duration(r() * ceiling)
}
