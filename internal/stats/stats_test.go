package stats

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRunningMeanMatchesArithmeticMean(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 2})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 4})

	s, ok := r.Keyword("a")
	if !ok {
		t.Fatal("keyword a missing")
	}
	if !almostEqual(s.AvgPage, 3.0) {
		t.Fatalf("AvgPage = %v, want 3.0", s.AvgPage)
	}
	if !almostEqual(s.SuccessRate(), 1.0) {
		t.Fatalf("SuccessRate = %v, want 1.0", s.SuccessRate())
	}
}

func TestRunningMeanOrderInvariant(t *testing.T) {
	orders := [][]int{{2, 4, 6}, {6, 4, 2}, {4, 6, 2}}
	for _, pages := range orders {
		r := NewRecorder()
		for _, p := range pages {
			r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: p})
		}
		s, _ := r.Keyword("a")
		if !almostEqual(s.AvgPage, 4.0) {
			t.Errorf("pages %v: AvgPage = %v, want 4.0", pages, s.AvgPage)
		}
	}
}

func TestCountsInvariant(t *testing.T) {
	r := NewRecorder()
	outcomes := []Outcome{
		{Keyword: "a", Target: "t1", Matched: true, Clicked: true, Page: 1},
		{Keyword: "a", Target: "t1", Matched: false, Error: "nav timeout", ErrorKind: "navigation"},
		{Keyword: "b", Target: "t2", Matched: true, Clicked: false, Page: 3, Error: "click blocked", ErrorKind: "click"},
	}
	for _, o := range outcomes {
		r.Record(o)
	}

	sum := 0
	for _, key := range []string{"a", "b"} {
		s, ok := r.Keyword(key)
		if !ok {
			t.Fatalf("keyword %s missing", key)
		}
		if s.Successes+s.Failures != s.Total {
			t.Fatalf("keyword %s: successes %d + failures %d != total %d", key, s.Successes, s.Failures, s.Total)
		}
		sum += s.Total
	}
	if sum != r.Len() {
		t.Fatalf("sum of per-keyword totals %d != log length %d", sum, r.Len())
	}
}

func TestFoundButUnclickableIsDistinguishable(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Clicked: false, Page: 2, Error: "element not interactable", ErrorKind: "click"})

	s, _ := r.Keyword("a")
	if s.Successes != 1 {
		t.Fatalf("found outcome not counted as success: %+v", s)
	}
	if s.Clicks != 0 {
		t.Fatalf("unclickable outcome counted a click: %+v", s)
	}
	if got := r.ErrorHistogram()["click"]; got != 1 {
		t.Fatalf("click error not in histogram: %v", r.ErrorHistogram())
	}
}

func TestRankingDistributionSuccessesOnly(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 2})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 2})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 5})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: false})

	dist := r.RankingDistribution()
	if dist[2] != 2 || dist[5] != 1 {
		t.Fatalf("distribution = %v, want page 2 twice and page 5 once", dist)
	}
	if _, ok := dist[0]; ok {
		t.Fatal("not-found outcomes must not appear in the ranking distribution")
	}
}

func TestErrorHistogramBucketsByKind(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Error: "x", ErrorKind: "navigation"})
	r.Record(Outcome{Keyword: "a", Target: "t", Error: "y", ErrorKind: "navigation"})
	r.Record(Outcome{Keyword: "a", Target: "t", Error: "z"})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1})

	hist := r.ErrorHistogram()
	if hist["navigation"] != 2 || hist["unknown"] != 1 {
		t.Fatalf("histogram = %v", hist)
	}
	if len(hist) != 2 {
		t.Fatalf("clean outcomes leaked into histogram: %v", hist)
	}
}

func TestAvgElapsedCoversAllOutcomes(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1, Elapsed: 2 * time.Second})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: false, Elapsed: 4 * time.Second})

	s, _ := r.Keyword("a")
	if !almostEqual(s.AvgElapsed, 3.0) {
		t.Fatalf("AvgElapsed = %v, want 3.0 (failures included)", s.AvgElapsed)
	}
}

func TestTopBySuccessRate(t *testing.T) {
	r := NewRecorder()
	// a: 2/2, b: 1/2, c: 0/1
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1})
	r.Record(Outcome{Keyword: "b", Target: "t", Matched: true, Page: 1})
	r.Record(Outcome{Keyword: "b", Target: "t", Matched: false})
	r.Record(Outcome{Keyword: "c", Target: "t", Matched: false})

	top := r.TopBySuccessRate(2)
	if len(top) != 2 {
		t.Fatalf("TopBySuccessRate(2) returned %d entries", len(top))
	}
	if top[0].Key != "a" || top[1].Key != "b" {
		t.Fatalf("order = [%s %s], want [a b]", top[0].Key, top[1].Key)
	}

	all := r.TopBySuccessRate(-1)
	if len(all) != 3 {
		t.Fatalf("negative n should return all keywords, got %d", len(all))
	}
}

func TestTopByClicks(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Clicked: true, Page: 1})
	r.Record(Outcome{Keyword: "b", Target: "t", Matched: true, Clicked: true, Page: 1})
	r.Record(Outcome{Keyword: "b", Target: "t", Matched: true, Clicked: true, Page: 2})

	top := r.TopByClicks(1)
	if len(top) != 1 || top[0].Key != "b" || top[0].Clicks != 2 {
		t.Fatalf("TopByClicks(1) = %+v, want b with 2 clicks", top)
	}
}

func TestOverallSuccessRate(t *testing.T) {
	r := NewRecorder()
	if got := r.OverallSuccessRate(); got != 0 {
		t.Fatalf("empty recorder success rate = %v, want 0", got)
	}
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: false})
	if got := r.OverallSuccessRate(); !almostEqual(got, 0.5) {
		t.Fatalf("OverallSuccessRate = %v, want 0.5", got)
	}
}

func TestReplayReproducesState(t *testing.T) {
	r := NewRecorder()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	outcomes := []Outcome{
		{Keyword: "a", Target: "t1", Matched: true, Clicked: true, Page: 2, Elapsed: 3 * time.Second, At: base},
		{Keyword: "a", Target: "t1", Matched: false, Error: "nav", ErrorKind: "navigation", Elapsed: 9 * time.Second, At: base.Add(time.Minute)},
		{Keyword: "b", Target: "t2", Matched: true, Page: 7, Elapsed: time.Second, At: base.Add(2 * time.Minute)},
	}
	for _, o := range outcomes {
		r.Record(o)
	}

	replayed := NewRecorder()
	for _, o := range r.Log() {
		replayed.Record(o)
	}

	for _, key := range []string{"a", "b"} {
		want, _ := r.Keyword(key)
		got, _ := replayed.Keyword(key)
		if got != want {
			t.Fatalf("keyword %s: replayed %+v, want %+v", key, got, want)
		}
	}
	for _, key := range []string{"t1", "t2"} {
		want, _ := r.Target(key)
		got, _ := replayed.Target(key)
		if got != want {
			t.Fatalf("target %s: replayed %+v, want %+v", key, got, want)
		}
	}
	if gotLen, wantLen := replayed.Len(), r.Len(); gotLen != wantLen {
		t.Fatalf("replayed log length %d, want %d", gotLen, wantLen)
	}
}

func TestClearResets(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1})
	r.Clear()

	if r.Len() != 0 {
		t.Fatalf("log not cleared: %d entries", r.Len())
	}
	if _, ok := r.Keyword("a"); ok {
		t.Fatal("keyword stats survived Clear")
	}
	if got := r.OverallSuccessRate(); got != 0 {
		t.Fatalf("success rate after Clear = %v", got)
	}
}

func TestHourlyActivity(t *testing.T) {
	r := NewRecorder()
	at := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: true, Page: 1, At: at})
	r.Record(Outcome{Keyword: "a", Target: "t", Matched: false, At: at.Add(10 * time.Minute)})

	hours := r.HourlyActivity()
	if hours[15] != 2 {
		t.Fatalf("hour 15 count = %d, want 2", hours[15])
	}
}

func TestSelectionSpread(t *testing.T) {
	r := NewRecorder()
	r.Record(Outcome{Keyword: "a", Target: "t1", Matched: true, Page: 1})
	r.Record(Outcome{Keyword: "a", Target: "t2", Matched: false})
	r.Record(Outcome{Keyword: "b", Target: "t1", Matched: false})

	kws, tgts := r.SelectionSpread()
	if kws["a"] != 2 || kws["b"] != 1 {
		t.Fatalf("keyword spread = %v", kws)
	}
	if tgts["t1"] != 2 || tgts["t2"] != 1 {
		t.Fatalf("target spread = %v", tgts)
	}
}
