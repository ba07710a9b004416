package browser

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy is the single retry discipline sessions apply to
// transient failures: bounded attempts, exponential backoff, jitter.
// The search core never retries; it sees only the final error.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	return p
}

// Do runs op until it succeeds, attempts run out, the context ends, or
// the failure is one retrying cannot fix (a challenge page). Returns
// the last error.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	p = p.withDefaults()

	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || attempt >= p.Attempts {
			return err
		}
		if errors.Is(err, ErrChallenge) || ctx.Err() != nil {
			return err
		}

		// Half fixed, half jitter, so concurrent sessions desynchronize.
		wait := delay/2 + time.Duration(rand.Int64N(int64(delay/2)+1))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
