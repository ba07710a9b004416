package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testHTTPSession(srv *httptest.Server) *HTTPSession {
	return NewHTTPSession(HTTPConfig{
		Engine: Engine{
			ResultsTemplate: srv.URL + "/search?q={query}&start={start}",
			PageSize:        10,
		},
		Client: srv.Client(),
		Retry:  RetryPolicy{Attempts: 1, BaseDelay: time.Millisecond},
	})
}

func TestHTTPSessionSearchAndPaginate(t *testing.T) {
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		starts = append(starts, r.URL.Query().Get("start"))
		switch r.URL.Query().Get("start") {
		case "0":
			fmt.Fprint(w, `<html><body>
				<div class="g"><a href="/r/one"><h3>One</h3></a></div>
				<div class="g"><a href="/r/two">Two</a></div>
				<a href="/r/one">dup</a>
				<a id="pnnext" href="/search?q=coffee&amp;start=10"><span>More results</span></a>
			</body></html>`)
		case "10":
			fmt.Fprint(w, `<html><body><a href="/r/three">Three</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := testHTTPSession(srv)
	defer s.Close()

	ctx := context.Background()
	if err := s.Search(ctx, "coffee"); err != nil {
		t.Fatalf("Search: %v", err)
	}

	links, err := s.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	want := []string{srv.URL + "/r/one", srv.URL + "/r/two"}
	if len(links) != len(want) {
		t.Fatalf("page 1 links = %+v, want %v", links, want)
	}
	for i, w := range want {
		if links[i].URL != w {
			t.Errorf("links[%d].URL = %q, want %q", i, links[i].URL, w)
		}
	}
	if links[0].Text != "One" {
		t.Errorf("links[0].Text = %q, want %q", links[0].Text, "One")
	}

	ok, err := s.NextPage(ctx)
	if err != nil || !ok {
		t.Fatalf("NextPage = %v, %v, want true, nil", ok, err)
	}
	links, err = s.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 1 || links[0].URL != srv.URL+"/r/three" {
		t.Fatalf("page 2 links = %+v", links)
	}

	ok, err = s.NextPage(ctx)
	if err != nil || ok {
		t.Fatalf("NextPage past last = %v, %v, want false, nil", ok, err)
	}

	if len(starts) != 2 || starts[0] != "0" || starts[1] != "10" {
		t.Fatalf("requested starts = %v, want [0 10]", starts)
	}
}

func TestHTTPSessionClick(t *testing.T) {
	var visited []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visited = append(visited, r.URL.Path)
		fmt.Fprint(w, "<html><body>landing</body></html>")
	}))
	defer srv.Close()

	s := testHTTPSession(srv)
	defer s.Close()

	ctx := context.Background()
	link := Link{URL: srv.URL + "/landing", Text: "Landing"}
	if err := s.Click(ctx, link); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if len(visited) != 1 || visited[0] != "/landing" {
		t.Fatalf("visited = %v, want [/landing]", visited)
	}
	cur, err := s.CurrentURL(ctx)
	if err != nil || cur != link.URL {
		t.Fatalf("CurrentURL = %q, %v, want %q", cur, err, link.URL)
	}

	var ce *ClickError
	if err := s.Click(ctx, Link{}); !errors.As(err, &ce) {
		t.Fatalf("Click on empty link = %v, want ClickError", err)
	}

	if err := s.Scroll(ctx, 300); err != nil {
		t.Fatalf("Scroll: %v", err)
	}
}

func TestHTTPSessionChallengeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>Our systems have detected unusual traffic from your network</html>")
	}))
	defer srv.Close()

	s := testHTTPSession(srv)
	err := s.Search(context.Background(), "coffee")
	if !errors.Is(err, ErrChallenge) {
		t.Fatalf("Search = %v, want challenge", err)
	}
	var ne *NavigationError
	if !errors.As(err, &ne) {
		t.Fatalf("Search = %T, want NavigationError", err)
	}
}

func TestHTTPSessionTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := testHTTPSession(srv)
	if err := s.Search(context.Background(), "coffee"); !errors.Is(err, ErrChallenge) {
		t.Fatalf("Search = %v, want challenge", err)
	}
}

func TestHTTPSessionUnwrapsRedirectLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/url?q=https://real.example/page&amp;sa=U">Real</a></body></html>`)
	}))
	defer srv.Close()

	s := testHTTPSession(srv)
	ctx := context.Background()
	if err := s.Search(ctx, "coffee"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	links, err := s.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 1 || links[0].URL != "https://real.example/page" {
		t.Fatalf("links = %+v, want the unwrapped target", links)
	}
}

func TestHTTPSessionNextControls(t *testing.T) {
	tests := []struct {
		name   string
		anchor string
		want   bool
	}{
		{"id pnnext", `<a id="pnnext" href="/p2">more</a>`, true},
		{"rel next", `<a rel="next" href="/p2">more</a>`, true},
		{"aria label", `<a aria-label="Next page" href="/p2">&gt;</a>`, true},
		{"localized text", `<a href="/p2">下一頁</a>`, true},
		{"no control", `<a href="/r/one">One</a>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("start") == "0" {
					fmt.Fprintf(w, "<html><body>%s</body></html>", tt.anchor)
					return
				}
				fmt.Fprint(w, "<html><body></body></html>")
			}))
			defer srv.Close()

			s := testHTTPSession(srv)
			ctx := context.Background()
			if err := s.Search(ctx, "coffee"); err != nil {
				t.Fatalf("Search: %v", err)
			}
			ok, err := s.NextPage(ctx)
			if err != nil {
				t.Fatalf("NextPage: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("NextPage = %v, want %v", ok, tt.want)
			}
		})
	}
}
