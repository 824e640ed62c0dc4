package sweeper

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff is 2s doubled per attempt, capped at 5m, plus up to 250ms jitter.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 2 * time.Second
	capDelay := 5 * time.Minute

	// attempt=0 => 2s
	// attempt=1 => 4s
	// attempt=2 => 8s
	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay {
		delay = capDelay
	}

	// small jitter so replicas do not sweep in lockstep
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
