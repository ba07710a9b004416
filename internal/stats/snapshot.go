package stats

import (
	"sort"
	"time"
)

// TrendPoint is one hour bucket of outcome volume and quality.
type TrendPoint struct {
	Hour        time.Time `json:"hour"`
	Total       int       `json:"total"`
	Successes   int       `json:"successes"`
	SuccessRate float64   `json:"success_rate"`
	AvgPage     float64   `json:"avg_page,omitempty"`
}

// SessionInfo summarizes the whole recording session.
type SessionInfo struct {
	StartedAt   time.Time `json:"started_at"`
	Duration    float64   `json:"duration_seconds"`
	Total       int       `json:"total"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	Clicks      int       `json:"clicks"`
	SuccessRate float64   `json:"success_rate"`
	AvgElapsed  float64   `json:"avg_elapsed_seconds"`
}

// ActivityInfo is the when-did-things-happen section of a snapshot.
type ActivityInfo struct {
	Hourly  [24]int   `json:"hourly"`
	FirstAt time.Time `json:"first_at,omitzero"`
	LastAt  time.Time `json:"last_at,omitzero"`
}

// Snapshot is the exportable view of the recorder, shaped for JSON
// serialization.
type Snapshot struct {
	Session  SessionInfo         `json:"session"`
	Keywords map[string]KeyStats `json:"keywords"`
	URLs     map[string]KeyStats `json:"urls"`
	Ranking  map[int]int         `json:"ranking"`
	Activity ActivityInfo        `json:"activity"`
	Trends   []TrendPoint        `json:"trends"`
}

// Snapshot captures the current state. Trends cover the trailing
// window, bucketed by hour; a zero window means the whole session.
func (r *Recorder) Snapshot(window time.Duration) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Session: SessionInfo{
			StartedAt:  r.started,
			Duration:   time.Since(r.started).Seconds(),
			Total:      r.total,
			Successes:  r.successes,
			Failures:   r.total - r.successes,
			Clicks:     r.clicks,
			AvgElapsed: r.avgElapsed,
		},
		Keywords: make(map[string]KeyStats, len(r.keywords)),
		URLs:     make(map[string]KeyStats, len(r.targets)),
		Ranking:  make(map[int]int, len(r.ranking)),
		Activity: ActivityInfo{Hourly: r.hours},
		Trends:   trends(r.log, window),
	}
	if r.total > 0 {
		snap.Session.SuccessRate = float64(r.successes) / float64(r.total)
	}
	for k, s := range r.keywords {
		snap.Keywords[k] = *s
	}
	for k, s := range r.targets {
		snap.URLs[k] = *s
	}
	for page, n := range r.ranking {
		snap.Ranking[page] = n
	}
	if len(r.log) > 0 {
		snap.Activity.FirstAt = r.log[0].At
		snap.Activity.LastAt = r.log[len(r.log)-1].At
	}
	return snap
}

// Trends buckets the outcome log by hour over the trailing window
// (zero = everything), oldest bucket first.
func (r *Recorder) Trends(window time.Duration) []TrendPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return trends(r.log, window)
}

func trends(log []Outcome, window time.Duration) []TrendPoint {
	if len(log) == 0 {
		return nil
	}

	var cutoff time.Time
	if window > 0 {
		cutoff = log[len(log)-1].At.Add(-window)
	}

	buckets := make(map[time.Time]*TrendPoint)
	pageSamples := make(map[time.Time]int)
	for _, o := range log {
		if window > 0 && o.At.Before(cutoff) {
			continue
		}
		hour := o.At.Truncate(time.Hour)
		p, ok := buckets[hour]
		if !ok {
			p = &TrendPoint{Hour: hour}
			buckets[hour] = p
		}
		p.Total++
		if o.Matched {
			p.Successes++
			if o.Page > 0 {
				pageSamples[hour]++
				p.AvgPage += (float64(o.Page) - p.AvgPage) / float64(pageSamples[hour])
			}
		}
	}

	out := make([]TrendPoint, 0, len(buckets))
	for _, p := range buckets {
		if p.Total > 0 {
			p.SuccessRate = float64(p.Successes) / float64(p.Total)
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}
