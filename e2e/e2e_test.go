// Package e2e tests cross-package integration chains through the public
// Service API: YAML configuration, the HTTP session provider, the
// paginated walk and SQLite persistence wired together the same way the
// production binary wires them.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/rankwalk"
	"github.com/hazyhaar/rankwalk/internal/store"

	_ "modernc.org/sqlite"
)

// --- test helpers ---

// serpServer is a stub search engine: /search renders result pages from
// the pages map keyed by query, /brew/... serves clickable articles and
// records every visit.
type serpServer struct {
	*httptest.Server

	mu     sync.Mutex
	visits []string
	// pages[query][pageIndex] is the HTML body for one results page.
	pages map[string][]string
}

func newSerpServer(pages map[string][]string) *serpServer {
	s := &serpServer{pages: pages}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		idx := start / 10
		body := "<html><body><p>No results.</p></body></html>"
		if ps, ok := s.pages[q]; ok && idx < len(ps) {
			body = ps[idx]
		}
		s.record("search:" + q + ":" + strconv.Itoa(idx))
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/brew/", func(w http.ResponseWriter, r *http.Request) {
		s.record(r.URL.Path)
		fmt.Fprint(w, "<html><body><h1>Brew notes</h1><p>Long article text.</p></body></html>")
	})
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *serpServer) record(v string) {
	s.mu.Lock()
	s.visits = append(s.visits, v)
	s.mu.Unlock()
}

func (s *serpServer) count(v string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.visits {
		if got == v {
			n++
		}
	}
	return n
}

func loadConfig(t *testing.T, doc string) *rankwalk.FileConfig {
	t.Helper()
	cfg, err := rankwalk.ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	return cfg
}

// fastLimits disables every pacing guard so tests spend no wall time.
const fastLimits = `
limits:
  min_interval: 0s
  hourly: -1
  daily: -1
  long_break:
    every: -1
  failure_cooldown:
    after: -1
`

func TestE2E_SearchClickPersist(t *testing.T) {
	// WHAT: Full cycle: parse config → HTTP session → paginated walk →
	// click-through → outcome log on disk.
	// WHY: End-to-end validation of the production wiring.
	srv := newSerpServer(map[string][]string{
		"coffee shop": {
			`<html><body>
			<div class="g"><a href="/brew/other-roaster">Other roaster</a></div>
			<div class="g"><a href="/brew/filler">Filler result</a></div>
			<a id="pnnext" href="/search?q=coffee+shop&amp;start=10">Next</a>
			</body></html>`,
			`<html><body>
			<div class="g"><a href="/brew/decoy">Decoy</a></div>
			<div class="g"><a href="/brew/best-coffee">Best coffee downtown</a></div>
			</body></html>`,
		},
		"tea house": {
			`<html><body><div class="g"><a href="/brew/green-tea">Green tea</a></div></body></html>`,
		},
	})
	defer srv.Close()

	dbPath := t.TempDir() + "/outcomes.db"
	cfg := loadConfig(t, fmt.Sprintf(`
general:
  max_pages: 3
  wait_timeout: 5s
  min_delay: 1ms
  max_delay: 2ms
  page_delay:
    min: 1ms
    max: 2ms
browser:
  provider: http
  engine_url: %s
%s
storage:
  path: %s
keywords:
  - coffee shop
  - keyword: tea house
    max_pages: 1
target_urls:
  - url: %s/brew/best-coffee
    match_type: exact
`, srv.URL, fastLimits, dbPath, srv.URL))

	svc, err := rankwalk.FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	outcomes, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes: got %d, want 2", len(outcomes))
	}

	hit := outcomes[0]
	if !hit.Matched || !hit.Clicked || hit.Page != 2 || hit.State != "found" {
		t.Fatalf("coffee shop outcome: %+v", hit)
	}
	if hit.ID == "" {
		t.Fatal("outcome ID not assigned")
	}
	miss := outcomes[1]
	if miss.Matched || miss.State != "exhausted" || miss.Pages != 1 {
		t.Fatalf("tea house outcome: %+v", miss)
	}

	if n := srv.count("/brew/best-coffee"); n != 1 {
		t.Fatalf("target visits: got %d, want 1", n)
	}
	if n := srv.count("search:tea house:1"); n != 0 {
		t.Fatalf("tea house page 2 fetched despite max_pages 1")
	}

	snap := svc.Snapshot(time.Hour)
	if snap.Session.Total != 2 || snap.Session.Successes != 1 || snap.Session.Clicks != 1 {
		t.Fatalf("session stats: %+v", snap.Session)
	}
	if snap.Ranking[2] != 1 {
		t.Fatalf("ranking: got %v, want page 2 once", snap.Ranking)
	}
	if ks, ok := snap.Keywords["coffee shop"]; !ok || ks.Successes != 1 {
		t.Fatalf("keyword stats: %+v", snap.Keywords)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The outcome log must survive the process: reopen and replay.
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	n, err := st.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("persisted outcomes: got %d, want 2", n)
	}
	var ids []string
	if err := st.Replay(context.Background(), func(o rankwalk.Outcome) error {
		ids = append(ids, o.ID)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(ids) != 2 || ids[0] != outcomes[0].ID || ids[1] != outcomes[1].ID {
		t.Fatalf("replayed ids %v, want %v", ids, []string{outcomes[0].ID, outcomes[1].ID})
	}
}

func TestE2E_RandomizedIterations(t *testing.T) {
	// WHAT: Randomized execution plan through the config path: three
	// round-robin iterations over a single pair.
	// WHY: The iteration planner and the pacing between iterations are
	// only reachable through FromConfig.
	srv := newSerpServer(map[string][]string{
		"coffee shop": {
			`<html><body><div class="g"><a href="/brew/best-coffee">Best coffee</a></div></body></html>`,
		},
	})
	defer srv.Close()

	cfg := loadConfig(t, fmt.Sprintf(`
general:
  max_pages: 2
  min_delay: 1ms
  max_delay: 2ms
  page_delay:
    min: 1ms
    max: 2ms
  random_execution:
    enabled: true
    total_iterations: 3
    min_delay_between_iterations: 1ms
    max_delay_between_iterations: 2ms
browser:
  provider: http
  engine_url: %s
%s
keywords:
  - coffee shop
target_urls:
  - url: %s/brew/best-coffee
    match_type: exact
`, srv.URL, fastLimits, srv.URL))

	svc, err := rankwalk.FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	defer svc.Close()

	outcomes, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes: got %d, want 3", len(outcomes))
	}
	for i, o := range outcomes {
		if !o.Matched || o.Page != 1 {
			t.Fatalf("iteration %d: %+v", i, o)
		}
	}
	if n := srv.count("search:coffee shop:0"); n != 3 {
		t.Fatalf("searches: got %d, want 3", n)
	}
	if n := srv.count("/brew/best-coffee"); n != 3 {
		t.Fatalf("target visits: got %d, want 3", n)
	}
}

func TestE2E_ChallengeAbortsTask(t *testing.T) {
	// WHAT: A bot-check interstitial turns the task into a failed
	// outcome without killing the cycle.
	// WHY: Challenge detection crosses browser, walker and stats.
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Our systems have detected unusual traffic from your computer network.</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := loadConfig(t, fmt.Sprintf(`
general:
  max_pages: 2
  min_delay: 1ms
  max_delay: 2ms
  page_delay:
    min: 1ms
    max: 2ms
browser:
  provider: http
  engine_url: %s
%s
keywords:
  - coffee shop
target_urls:
  - url: %s/brew/best-coffee
    match_type: exact
`, srv.URL, fastLimits, srv.URL))

	svc, err := rankwalk.FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	defer svc.Close()

	outcomes, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes: got %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.Matched || o.State != "aborted" || o.ErrorKind != "challenge" {
		t.Fatalf("challenge outcome: %+v", o)
	}
	if hist := svc.Stats().ErrorHistogram(); hist["challenge"] != 1 {
		t.Fatalf("error histogram: %v", hist)
	}
}
