package errors

import (
	"math"
	"math/rand"
	"time"
)

// CalculateDelay returns initial * multiplier^attempt, capped at MaxDelay.
func CalculateDelay(attempt int, policy *RetryPolicy) time.Duration {
	if policy == nil {
		return 0
	}
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := time.Duration(float64(policy.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		return policy.MaxDelay
	}
	return delay
}

// AddJitter offsets delay by a random amount within ±jitterPercent. The
// result is at least one millisecond.
func AddJitter(delay time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 {
		return delay
	}
	jitterRange := float64(delay) * jitterPercent
	jittered := time.Duration(float64(delay) + (rand.Float64()*2-1)*jitterRange)
	if jittered < time.Millisecond {
		return time.Millisecond
	}
	return jittered
}
