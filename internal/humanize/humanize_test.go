package humanize

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingScroller struct {
	calls int
	err   error
}

func (c *countingScroller) Scroll(context.Context, int) error {
	c.calls++
	return c.err
}

func TestTypeDelayBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 200; i++ {
		d := s.TypeDelay()
		if d < 50*time.Millisecond || d > 550*time.Millisecond {
			t.Fatalf("TypeDelay = %v, outside plausible bounds", d)
		}
	}
}

func TestBetween(t *testing.T) {
	s := New(1)
	for i := 0; i < 200; i++ {
		d := s.Between(2*time.Second, 5*time.Second)
		if d < 2*time.Second || d >= 5*time.Second {
			t.Fatalf("Between(2s,5s) = %v", d)
		}
	}
	if d := s.Between(3*time.Second, 3*time.Second); d != 3*time.Second {
		t.Fatalf("degenerate interval = %v, want 3s", d)
	}
	// Swapped bounds behave like the ordered interval.
	if d := s.Between(5*time.Second, 2*time.Second); d < 2*time.Second || d >= 5*time.Second {
		t.Fatalf("swapped bounds = %v", d)
	}
}

func TestPauseHonorsCancellation(t *testing.T) {
	s := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := s.Pause(ctx, time.Hour, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Pause = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled Pause still blocked")
	}
}

func TestDwellSpendsAtLeastMin(t *testing.T) {
	s := New(1)
	sc := &countingScroller{}
	start := time.Now()
	if err := s.Dwell(context.Background(), sc, 30*time.Millisecond, 60*time.Millisecond); err != nil {
		t.Fatalf("Dwell: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("Dwell returned after %v, want at least 30ms", elapsed)
	}
}

func TestDwellInterruptible(t *testing.T) {
	s := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := s.Dwell(ctx, &countingScroller{}, time.Hour, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dwell = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Dwell ignored cancellation")
	}
}

func TestDwellSurvivesScrollFailure(t *testing.T) {
	s := New(1)
	sc := &countingScroller{err: errors.New("viewport gone")}
	if err := s.Dwell(context.Background(), sc, 10*time.Millisecond, 20*time.Millisecond); err != nil {
		t.Fatalf("Dwell should absorb scroll failures, got %v", err)
	}
	if sc.calls != 1 {
		t.Fatalf("scroller called %d times after failure, want 1", sc.calls)
	}
}

func TestSurveyPageScrolls(t *testing.T) {
	s := New(1)
	sc := &countingScroller{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.SurveyPage(ctx, sc)
	if sc.calls == 0 {
		t.Fatal("SurveyPage never scrolled")
	}
}

func TestSeededSimulatorIsReproducible(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 50; i++ {
		if da, db := a.TypeDelay(), b.TypeDelay(); da != db {
			t.Fatalf("same seed diverged at step %d: %v vs %v", i, da, db)
		}
	}
}
