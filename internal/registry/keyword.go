// Package registry holds the keyword and target inventories the
// orchestrator draws tasks from. Both registries validate on load and
// keep insertion order so priority ties resolve deterministically.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrValidation wraps every rejected entry so callers can branch on the
// class without parsing messages.
var ErrValidation = errors.New("registry: invalid entry")

// Keyword is one search term.
type Keyword struct {
	Text     string
	Enabled  bool
	Priority int
	MaxPages int // 0 = inherit the general page ceiling
}

// Summary counts entries by enabled state and priority bucket.
type Summary struct {
	Total      int
	Enabled    int
	Disabled   int
	ByPriority map[int]int
}

// Keywords is the keyword registry. Safe for concurrent use.
type Keywords struct {
	mu      sync.RWMutex
	entries []Keyword
	index   map[string]int
}

func NewKeywords() *Keywords {
	return &Keywords{index: make(map[string]int)}
}

// Load validates the batch and replaces the registry contents. On any
// validation failure the registry is left untouched.
func (k *Keywords) Load(entries []Keyword) error {
	index := make(map[string]int, len(entries))
	clean := make([]Keyword, 0, len(entries))
	for _, e := range entries {
		if err := validateKeyword(e); err != nil {
			return err
		}
		if _, dup := index[e.Text]; dup {
			return fmt.Errorf("%w: duplicate keyword %q", ErrValidation, e.Text)
		}
		index[e.Text] = len(clean)
		clean = append(clean, e)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries = clean
	k.index = index
	return nil
}

// Add appends one keyword.
func (k *Keywords) Add(e Keyword) error {
	if err := validateKeyword(e); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, dup := k.index[e.Text]; dup {
		return fmt.Errorf("%w: duplicate keyword %q", ErrValidation, e.Text)
	}
	k.index[e.Text] = len(k.entries)
	k.entries = append(k.entries, e)
	return nil
}

// Remove deletes a keyword by text. False when unknown.
func (k *Keywords) Remove(text string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	i, ok := k.index[text]
	if !ok {
		return false
	}
	k.entries = append(k.entries[:i], k.entries[i+1:]...)
	delete(k.index, text)
	for j := i; j < len(k.entries); j++ {
		k.index[k.entries[j].Text] = j
	}
	return true
}

// Enable marks a keyword enabled. False when unknown.
func (k *Keywords) Enable(text string) bool { return k.setEnabled(text, true) }

// Disable marks a keyword disabled. False when unknown.
func (k *Keywords) Disable(text string) bool { return k.setEnabled(text, false) }

func (k *Keywords) setEnabled(text string, enabled bool) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	i, ok := k.index[text]
	if !ok {
		return false
	}
	k.entries[i].Enabled = enabled
	return true
}

// ListEnabled returns enabled keywords ordered by ascending priority,
// insertion order on ties.
func (k *Keywords) ListEnabled() []Keyword {
	k.mu.RLock()
	out := make([]Keyword, 0, len(k.entries))
	for _, e := range k.entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	k.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// All returns every entry in insertion order.
func (k *Keywords) All() []Keyword {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Keyword, len(k.entries))
	copy(out, k.entries)
	return out
}

// Stats summarizes the registry by enabled state and priority.
func (k *Keywords) Stats() Summary {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s := Summary{Total: len(k.entries), ByPriority: make(map[int]int)}
	for _, e := range k.entries {
		if e.Enabled {
			s.Enabled++
		} else {
			s.Disabled++
		}
		s.ByPriority[e.Priority]++
	}
	return s
}

func validateKeyword(e Keyword) error {
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("%w: keyword text empty", ErrValidation)
	}
	if e.MaxPages < 0 {
		return fmt.Errorf("%w: keyword %q: negative max pages", ErrValidation, e.Text)
	}
	return nil
}
