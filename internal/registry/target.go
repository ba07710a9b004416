package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hazyhaar/rankwalk/internal/match"
)

// Target is one destination to locate in search results. Keywords
// restricts which search terms the target applies to; empty means all.
type Target struct {
	URL         string
	Enabled     bool
	Priority    int
	Policy      match.Policy
	Keywords    []string
	MaxAttempts int // 0 = unlimited

	rule *match.Rule
}

// Rule returns the compiled match rule. Nil until the target has been
// loaded through a registry.
func (t *Target) Rule() *match.Rule { return t.rule }

// AppliesTo reports whether the target participates in searches for the
// given keyword.
func (t *Target) AppliesTo(keyword string) bool {
	if len(t.Keywords) == 0 {
		return true
	}
	for _, k := range t.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// TargetSummary extends Summary with per-policy counts and attempt
// exhaustion.
type TargetSummary struct {
	Summary
	ByPolicy  map[match.Policy]int
	Exhausted int
}

// Targets is the target registry. Safe for concurrent use.
type Targets struct {
	mu       sync.RWMutex
	entries  []Target
	index    map[string]int
	attempts map[string]int
}

func NewTargets() *Targets {
	return &Targets{index: make(map[string]int), attempts: make(map[string]int)}
}

// Load validates and compiles the batch, then replaces the registry
// contents. A bad regex pattern fails here, never at match time.
// Attempt counters reset.
func (t *Targets) Load(entries []Target) error {
	index := make(map[string]int, len(entries))
	clean := make([]Target, 0, len(entries))
	for _, e := range entries {
		compiled, err := compileTarget(e)
		if err != nil {
			return err
		}
		if _, dup := index[e.URL]; dup {
			return fmt.Errorf("%w: duplicate target %q", ErrValidation, e.URL)
		}
		index[e.URL] = len(clean)
		clean = append(clean, compiled)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = clean
	t.index = index
	t.attempts = make(map[string]int)
	return nil
}

// Add appends one target.
func (t *Targets) Add(e Target) error {
	compiled, err := compileTarget(e)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.index[e.URL]; dup {
		return fmt.Errorf("%w: duplicate target %q", ErrValidation, e.URL)
	}
	t.index[e.URL] = len(t.entries)
	t.entries = append(t.entries, compiled)
	return nil
}

// Remove deletes a target by URL. False when unknown.
func (t *Targets) Remove(url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[url]
	if !ok {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	delete(t.index, url)
	delete(t.attempts, url)
	for j := i; j < len(t.entries); j++ {
		t.index[t.entries[j].URL] = j
	}
	return true
}

// Enable marks a target enabled. False when unknown.
func (t *Targets) Enable(url string) bool { return t.setEnabled(url, true) }

// Disable marks a target disabled. False when unknown.
func (t *Targets) Disable(url string) bool { return t.setEnabled(url, false) }

func (t *Targets) setEnabled(url string, enabled bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[url]
	if !ok {
		return false
	}
	t.entries[i].Enabled = enabled
	return true
}

// ListEnabled returns enabled, non-exhausted targets ordered by
// ascending priority, insertion order on ties.
func (t *Targets) ListEnabled() []Target {
	return t.listEnabled(func(Target) bool { return true })
}

// TargetsFor returns the enabled, non-exhausted targets applicable to a
// keyword, in priority order.
func (t *Targets) TargetsFor(keyword string) []Target {
	return t.listEnabled(func(e Target) bool { return e.AppliesTo(keyword) })
}

func (t *Targets) listEnabled(keep func(Target) bool) []Target {
	t.mu.RLock()
	out := make([]Target, 0, len(t.entries))
	for _, e := range t.entries {
		if !e.Enabled || t.exhaustedLocked(e) || !keep(e) {
			continue
		}
		out = append(out, e)
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// RecordAttempt bumps the attempt counter for a target. Targets with a
// MaxAttempts budget drop out of listings once the budget is spent.
func (t *Targets) RecordAttempt(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[url]; ok {
		t.attempts[url]++
	}
}

// ResetAttempts clears all attempt counters, restoring exhausted
// targets to rotation.
func (t *Targets) ResetAttempts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = make(map[string]int)
}

func (t *Targets) exhaustedLocked(e Target) bool {
	return e.MaxAttempts > 0 && t.attempts[e.URL] >= e.MaxAttempts
}

// All returns every entry in insertion order.
func (t *Targets) All() []Target {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Target, len(t.entries))
	copy(out, t.entries)
	return out
}

// Stats summarizes the registry by enabled state, priority, policy and
// attempt exhaustion.
func (t *Targets) Stats() TargetSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := TargetSummary{
		Summary:  Summary{Total: len(t.entries), ByPriority: make(map[int]int)},
		ByPolicy: make(map[match.Policy]int),
	}
	for _, e := range t.entries {
		if e.Enabled {
			s.Enabled++
		} else {
			s.Disabled++
		}
		s.ByPriority[e.Priority]++
		s.ByPolicy[e.Policy]++
		if t.exhaustedLocked(e) {
			s.Exhausted++
		}
	}
	return s
}

func compileTarget(e Target) (Target, error) {
	if strings.TrimSpace(e.URL) == "" {
		return Target{}, fmt.Errorf("%w: target URL empty", ErrValidation)
	}
	if e.MaxAttempts < 0 {
		return Target{}, fmt.Errorf("%w: target %q: negative max attempts", ErrValidation, e.URL)
	}
	if e.Policy == "" {
		e.Policy = match.PolicyContains
	}
	rule, err := match.Compile(e.URL, e.Policy)
	if err != nil {
		return Target{}, fmt.Errorf("%w: target %q: %v", ErrValidation, e.URL, err)
	}
	e.rule = rule
	return e, nil
}
