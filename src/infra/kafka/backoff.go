package kafka

import (
	"math"
	"time"
)

const defaultRetryMax = 30 * time.Second

// exponentialBackoff doubles the delay each attempt: min(initial * 2^(attempt-1), max).
// A zero max means defaultRetryMax.
type exponentialBackoff struct {
	initial time.Duration
	max     time.Duration
}

func (b exponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ceiling := b.max
	if ceiling <= 0 {
		ceiling = defaultRetryMax
	}
	// float64 overflow vira duração negativa
	d := time.Duration(float64(b.initial) * math.Pow(2, float64(attempt-1)))
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}
