// Package humanize paces browser interactions the way a person would:
// uneven typing, drifting scrolls, reading pauses. It only spends time
// and moves viewports; it never makes decisions for the search core.
package humanize

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Scroller is the viewport surface the simulator moves.
type Scroller interface {
	Scroll(ctx context.Context, dy int) error
}

// Simulator generates human-shaped delays and scroll patterns. Safe for
// concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Simulator seeded from seed, or from entropy when seed
// is zero. A fixed seed makes behavior reproducible in tests.
func New(seed uint64) *Simulator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// TypeDelay returns the pause before the next keystroke, 50–150ms with
// an occasional longer hesitation.
func (s *Simulator) TypeDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := 50*time.Millisecond + time.Duration(s.rng.Int64N(int64(100*time.Millisecond)))
	if s.rng.IntN(12) == 0 {
		d += time.Duration(s.rng.Int64N(int64(400 * time.Millisecond)))
	}
	return d
}

// Pause sleeps for a uniform duration in [min, max], returning early
// with the context's error on cancellation.
func (s *Simulator) Pause(ctx context.Context, min, max time.Duration) error {
	return sleep(ctx, s.Between(min, max))
}

// Between draws a uniform duration from [min, max].
func (s *Simulator) Between(min, max time.Duration) time.Duration {
	if max < min {
		min, max = max, min
	}
	if min < 0 {
		min = 0
	}
	span := max - min
	if span <= 0 {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rng.Int64N(int64(span)))
}

// SurveyPage drifts down the current page in a few scroll steps with
// short pauses, occasionally backtracking. Scroll failures end the
// survey quietly; they never matter to the task.
func (s *Simulator) SurveyPage(ctx context.Context, sc Scroller) {
	steps := s.intN(3) + 2
	for i := 0; i < steps; i++ {
		dy := 200 + s.intN(500)
		if i > 0 && s.intN(4) == 0 {
			dy = -(50 + s.intN(200))
		}
		if sc != nil {
			if err := sc.Scroll(ctx, dy); err != nil {
				return
			}
		}
		if err := sleep(ctx, s.Between(300*time.Millisecond, 1200*time.Millisecond)); err != nil {
			return
		}
	}
}

// Dwell simulates reading the landed page for a uniform duration in
// [min, max]: staged scrolls separated by pauses until the time is
// spent. Interruptible through ctx.
func (s *Simulator) Dwell(ctx context.Context, sc Scroller, min, max time.Duration) error {
	total := s.Between(min, max)
	deadline := time.Now().Add(total)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if sc != nil {
			dy := 100 + s.intN(400)
			if s.intN(5) == 0 {
				dy = -dy / 2
			}
			if err := sc.Scroll(ctx, dy); err != nil {
				// Keep dwelling without scrolling; the pause is the point.
				sc = nil
			}
		}
		step := s.Between(time.Second, 3*time.Second)
		if step > remaining {
			step = remaining
		}
		if err := sleep(ctx, step); err != nil {
			return err
		}
	}
}

func (s *Simulator) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
