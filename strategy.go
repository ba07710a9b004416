package rankwalk

import (
	"math/rand/v2"

	"github.com/hazyhaar/rankwalk/internal/registry"
)

// TaskPair is one keyword × target unit of work.
type TaskPair struct {
	Keyword registry.Keyword
	Target  registry.Target
}

// Strategy materializes the task sequence for one cycle from the
// enabled registry entries. A strategy is chosen once per cycle and
// never switched mid-run.
type Strategy interface {
	Plan(keywords []registry.Keyword, targets []registry.Target) []TaskPair
}

// Sequential walks the full keyword × target cross product in registry
// order. Targets restricted to certain keywords only pair with those;
// every resulting pair runs exactly once per cycle.
type Sequential struct{}

func (Sequential) Plan(keywords []registry.Keyword, targets []registry.Target) []TaskPair {
	var out []TaskPair
	for _, k := range keywords {
		for i := range targets {
			if targets[i].AppliesTo(k.Text) {
				out = append(out, TaskPair{Keyword: k, Target: targets[i]})
			}
		}
	}
	return out
}

// Randomized plans Iterations pairs; each axis independently draws at
// random or round-robins through the enabled set.
type Randomized struct {
	Iterations    int
	RandomKeyword bool       // false = round-robin
	RandomTarget  bool       // false = round-robin
	Rand          *rand.Rand // nil uses the global source
}

func (r Randomized) Plan(keywords []registry.Keyword, targets []registry.Target) []TaskPair {
	if len(keywords) == 0 || len(targets) == 0 {
		return nil
	}
	n := r.Iterations
	if n <= 0 {
		n = len(keywords) * len(targets)
	}
	out := make([]TaskPair, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, TaskPair{
			Keyword: keywords[r.pick(i, len(keywords), r.RandomKeyword)],
			Target:  targets[r.pick(i, len(targets), r.RandomTarget)],
		})
	}
	return out
}

func (r Randomized) pick(i, n int, random bool) int {
	if !random {
		return i % n
	}
	if r.Rand != nil {
		return r.Rand.IntN(n)
	}
	return rand.IntN(n)
}
