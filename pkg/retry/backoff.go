package retry

import "time"

// Backoff computes exponential delays for a policy.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

func NewBackoff(policy Policy) *Backoff {
	m := policy.Multiplier
	if m == 0 {
		m = 2
	}
	return &Backoff{
		initial:    policy.InitialDelay,
		max:        policy.MaxDelay,
		multiplier: m,
	}
}

// Calculate returns the delay before the given attempt (1-based).
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt <= 1 {
		return b.capped(b.initial)
	}
	d := float64(b.initial)
	for i := 1; i < attempt; i++ {
		d *= b.multiplier
		if b.max > 0 && time.Duration(d) >= b.max {
			return b.max
		}
	}
	return b.capped(time.Duration(d))
}

func (b *Backoff) capped(d time.Duration) time.Duration {
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}
