// Package stats aggregates search outcomes into running per-keyword and
// per-target statistics. The outcome log is append-only; every derived
// counter is recomputable by replaying the log through a fresh Recorder,
// which is how crash recovery restores state.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Outcome is one finished search task. Immutable once recorded.
type Outcome struct {
	ID        string        `json:"id,omitempty"`
	Keyword   string        `json:"keyword"`
	Target    string        `json:"target"`
	Matched   bool          `json:"matched"`
	Clicked   bool          `json:"clicked"`
	Page      int           `json:"page"` // 0 = not found
	Pages     int           `json:"pages_scanned,omitempty"`
	State     string        `json:"state,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	At        time.Time     `json:"at"`
}

// KeyStats is the running view for one keyword or target. AvgPage is
// the successes-weighted mean result page; AvgElapsed covers all
// outcomes, success or not.
type KeyStats struct {
	Key        string    `json:"key"`
	Total      int       `json:"total"`
	Successes  int       `json:"successes"`
	Failures   int       `json:"failures"`
	Clicks     int       `json:"clicks"`
	AvgPage    float64   `json:"avg_page,omitempty"`
	AvgElapsed float64   `json:"avg_elapsed_seconds"`
	LastAt     time.Time `json:"last_at"`

	pageSamples int
}

// SuccessRate is successes over total, 0 when empty.
func (s KeyStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}

// Recorder owns the outcome log and the derived stat maps. All methods
// are safe for concurrent use; Record calls are serialized because the
// running-mean updates are order-sensitive.
type Recorder struct {
	mu       sync.Mutex
	log      []Outcome
	keywords map[string]*KeyStats
	targets  map[string]*KeyStats
	ranking  map[int]int
	errors   map[string]int
	hours    [24]int

	started    time.Time
	total      int
	successes  int
	clicks     int
	avgElapsed float64
}

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.reset()
	return r
}

func (r *Recorder) reset() {
	r.log = nil
	r.keywords = make(map[string]*KeyStats)
	r.targets = make(map[string]*KeyStats)
	r.ranking = make(map[int]int)
	r.errors = make(map[string]int)
	r.hours = [24]int{}
	r.started = time.Now()
	r.total = 0
	r.successes = 0
	r.clicks = 0
	r.avgElapsed = 0
}

// Record appends the outcome and updates every derived view in place.
func (r *Recorder) Record(o Outcome) {
	if o.At.IsZero() {
		o.At = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = append(r.log, o)
	r.apply(r.stats(r.keywords, o.Keyword), o)
	r.apply(r.stats(r.targets, o.Target), o)

	r.total++
	if o.Matched {
		r.successes++
		if o.Page > 0 {
			r.ranking[o.Page]++
		}
	}
	if o.Clicked {
		r.clicks++
	}
	r.avgElapsed += (o.Elapsed.Seconds() - r.avgElapsed) / float64(r.total)
	r.hours[o.At.Hour()]++

	if kind := errorBucket(o); kind != "" {
		r.errors[kind]++
	}
}

func (r *Recorder) stats(m map[string]*KeyStats, key string) *KeyStats {
	s, ok := m[key]
	if !ok {
		s = &KeyStats{Key: key}
		m[key] = s
	}
	return s
}

func (r *Recorder) apply(s *KeyStats, o Outcome) {
	s.Total++
	if o.Matched {
		s.Successes++
		if o.Page > 0 {
			s.pageSamples++
			s.AvgPage += (float64(o.Page) - s.AvgPage) / float64(s.pageSamples)
		}
	} else {
		s.Failures++
	}
	if o.Clicked {
		s.Clicks++
	}
	s.AvgElapsed += (o.Elapsed.Seconds() - s.AvgElapsed) / float64(s.Total)
	if o.At.After(s.LastAt) {
		s.LastAt = o.At
	}
}

func errorBucket(o Outcome) string {
	if o.ErrorKind != "" {
		return o.ErrorKind
	}
	if o.Error != "" {
		return "unknown"
	}
	return ""
}

// Len reports the outcome log length.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Log returns a copy of the outcome log in record order.
func (r *Recorder) Log() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.log))
	copy(out, r.log)
	return out
}

// Keyword returns the running stats for one keyword.
func (r *Recorder) Keyword(key string) (KeyStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.keywords[key]
	if !ok {
		return KeyStats{}, false
	}
	return *s, true
}

// Target returns the running stats for one target.
func (r *Recorder) Target(key string) (KeyStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.targets[key]
	if !ok {
		return KeyStats{}, false
	}
	return *s, true
}

// TopBySuccessRate ranks keywords by success rate descending; ties
// break on total volume, then key, so the order is stable.
func (r *Recorder) TopBySuccessRate(n int) []KeyStats {
	return r.top(n, func(a, b KeyStats) bool {
		ar, br := a.SuccessRate(), b.SuccessRate()
		if ar != br {
			return ar > br
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Key < b.Key
	})
}

// TopByClicks ranks keywords by click count descending.
func (r *Recorder) TopByClicks(n int) []KeyStats {
	return r.top(n, func(a, b KeyStats) bool {
		if a.Clicks != b.Clicks {
			return a.Clicks > b.Clicks
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Key < b.Key
	})
}

func (r *Recorder) top(n int, less func(a, b KeyStats) bool) []KeyStats {
	r.mu.Lock()
	all := make([]KeyStats, 0, len(r.keywords))
	for _, s := range r.keywords {
		all = append(all, *s)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// RankingDistribution maps result page to success count.
func (r *Recorder) RankingDistribution() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]int, len(r.ranking))
	for page, n := range r.ranking {
		out[page] = n
	}
	return out
}

// ErrorHistogram maps error kind to occurrence count.
func (r *Recorder) ErrorHistogram() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.errors))
	for kind, n := range r.errors {
		out[kind] = n
	}
	return out
}

// OverallSuccessRate is successes over all outcomes, 0 when empty.
func (r *Recorder) OverallSuccessRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return 0
	}
	return float64(r.successes) / float64(r.total)
}

// HourlyActivity returns outcome counts bucketed by hour of day.
func (r *Recorder) HourlyActivity() [24]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hours
}

// SelectionSpread reports how many outcomes each keyword and target
// accumulated, for judging how evenly a randomized plan drew them.
func (r *Recorder) SelectionSpread() (keywords, targets map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keywords = make(map[string]int, len(r.keywords))
	for k, s := range r.keywords {
		keywords[k] = s.Total
	}
	targets = make(map[string]int, len(r.targets))
	for k, s := range r.targets {
		targets[k] = s.Total
	}
	return keywords, targets
}

// Clear resets the recorder to a fresh session. Meant for the gap
// between sessions, not mid-cycle.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
