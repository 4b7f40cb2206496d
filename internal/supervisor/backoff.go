package supervisor

import (
	"math/rand"
	"time"
)

// backoff computes the stream reconnect delay curve from spec.md 4.F:
// exponential with a multiplier of 2, a floor of initial, a ceiling of max,
// and +/-20% relative jitter. A server `retry:` directive overrides exactly
// one upcoming delay without disturbing the underlying curve.
type backoff struct {
	initial       time.Duration
	max           time.Duration
	current       time.Duration
	overrideDelay time.Duration // > 0 means the next call to next() consumes it instead
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// next returns the delay to sleep before the next reconnect attempt and
// advances the curve (doubling, capped at max) for the attempt after that.
func (b *backoff) next() time.Duration {
	if b.overrideDelay > 0 {
		d := b.overrideDelay
		b.overrideDelay = 0
		return d
	}

	delay := jitter(b.current)
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// reset returns the curve to its initial delay, as happens whenever a frame
// is successfully received (spec.md 4.F: "successful frame reception resets
// the backoff to initial").
func (b *backoff) reset() {
	b.current = b.initial
	b.overrideDelay = 0
}

// override replaces the delay the next call to next() will return, without
// otherwise perturbing the curve. A non-positive delay is ignored.
func (b *backoff) override(d time.Duration) {
	if d > 0 {
		b.overrideDelay = d
	}
}

func jitter(d time.Duration) time.Duration {
	spread := float64(d) * jitterRatio
	offset := (rand.Float64()*2 - 1) * spread
	result := d + time.Duration(offset)
	if result < 0 {
		return 0
	}
	return result
}
