// Package limiter paces search execution: minimum spacing between
// searches, rolling hourly and daily caps, scheduled long breaks and a
// cooldown after consecutive failures. It only decides when the next
// task may start, never which task runs.
package limiter

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config tunes the limiter. Zero values disable the corresponding
// guard.
type Config struct {
	// MinInterval is the floor between consecutive task starts.
	MinInterval time.Duration
	// Hourly and Daily cap task starts over rolling windows.
	Hourly int
	Daily  int
	// LongBreakEvery inserts a [LongBreakMin, LongBreakMax] pause
	// after that many completed tasks.
	LongBreakEvery int
	LongBreakMin   time.Duration
	LongBreakMax   time.Duration
	// CooldownAfter imposes a [CooldownMin, CooldownMax] pause once
	// that many tasks fail in a row.
	CooldownAfter int
	CooldownMin   time.Duration
	CooldownMax   time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.LongBreakEvery > 0 {
		if c.LongBreakMin <= 0 {
			c.LongBreakMin = 2 * time.Minute
		}
		if c.LongBreakMax < c.LongBreakMin {
			c.LongBreakMax = c.LongBreakMin
		}
	}
	if c.CooldownAfter > 0 {
		if c.CooldownMin <= 0 {
			c.CooldownMin = 5 * time.Minute
		}
		if c.CooldownMax < c.CooldownMin {
			c.CooldownMax = c.CooldownMin
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Limiter is the admission gate the orchestrator consults before every
// task. Reserve blocks until the task may start; Done feeds back how it
// went.
type Limiter struct {
	cfg    Config
	logger *slog.Logger
	bucket *rate.Limiter

	mu         sync.Mutex
	hourly     []time.Time
	daily      []time.Time
	sinceBreak int
	failStreak int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Limiter {
	cfg.defaults()
	l := &Limiter{
		cfg:    cfg,
		logger: cfg.Logger,
		now:    time.Now,
		sleep:  sleepReal,
	}
	if cfg.MinInterval > 0 {
		l.bucket = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return l
}

// Reserve blocks until the next task may start: serves any pending
// cooldown or long break, waits for a slot in the hourly and daily
// windows, then enforces the minimum interval. The returned error is
// only ever the context's.
func (l *Limiter) Reserve(ctx context.Context) error {
	if err := l.serveCooldown(ctx); err != nil {
		return err
	}
	if err := l.serveLongBreak(ctx); err != nil {
		return err
	}
	if err := l.waitWindows(ctx); err != nil {
		return err
	}
	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Done records a task completion. Failures accumulate toward the
// cooldown; any success resets the streak.
func (l *Limiter) Done(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinceBreak++
	if success {
		l.failStreak = 0
	} else {
		l.failStreak++
	}
}

// Usage reports how many task starts sit in the rolling windows.
func (l *Limiter) Usage() (hourly, daily int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	return countWithin(l.hourly, now, time.Hour), countWithin(l.daily, now, 24*time.Hour)
}

func (l *Limiter) serveCooldown(ctx context.Context) error {
	l.mu.Lock()
	due := l.cfg.CooldownAfter > 0 && l.failStreak >= l.cfg.CooldownAfter
	if due {
		l.failStreak = 0
	}
	l.mu.Unlock()
	if !due {
		return nil
	}
	d := uniform(l.cfg.CooldownMin, l.cfg.CooldownMax)
	l.logger.Warn("limiter: consecutive failures, cooling down", "duration", d)
	return l.sleep(ctx, d)
}

func (l *Limiter) serveLongBreak(ctx context.Context) error {
	l.mu.Lock()
	due := l.cfg.LongBreakEvery > 0 && l.sinceBreak >= l.cfg.LongBreakEvery
	if due {
		l.sinceBreak = 0
	}
	l.mu.Unlock()
	if !due {
		return nil
	}
	d := uniform(l.cfg.LongBreakMin, l.cfg.LongBreakMax)
	l.logger.Info("limiter: taking a long break", "duration", d)
	return l.sleep(ctx, d)
}

func (l *Limiter) waitWindows(ctx context.Context) error {
	if l.cfg.Hourly <= 0 && l.cfg.Daily <= 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := l.now()
		l.hourly = pruneWindow(l.hourly, now, time.Hour)
		l.daily = pruneWindow(l.daily, now, 24*time.Hour)

		var wait time.Duration
		if l.cfg.Hourly > 0 && len(l.hourly) >= l.cfg.Hourly {
			wait = maxDuration(wait, time.Hour-now.Sub(l.hourly[0]))
		}
		if l.cfg.Daily > 0 && len(l.daily) >= l.cfg.Daily {
			wait = maxDuration(wait, 24*time.Hour-now.Sub(l.daily[0]))
		}
		if wait <= 0 {
			l.hourly = append(l.hourly, now)
			l.daily = append(l.daily, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		l.logger.Info("limiter: search window full, waiting", "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func pruneWindow(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	keep := stamps[:0]
	for _, t := range stamps {
		if now.Sub(t) < window {
			keep = append(keep, t)
		}
	}
	return keep
}

func countWithin(stamps []time.Time, now time.Time, window time.Duration) int {
	n := 0
	for _, t := range stamps {
		if now.Sub(t) < window {
			n++
		}
	}
	return n
}

func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func sleepReal(ctx context.Context, d time.Duration) error {
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
