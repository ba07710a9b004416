package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// HTTPConfig configures the browser-less session.
type HTTPConfig struct {
	Engine    Engine
	Client    *http.Client
	UserAgent string
	Retry     RetryPolicy
	Logger    *slog.Logger
}

// HTTPSession drives an engine without a browser: results pages come
// from the engine's URL template, anchors are parsed straight out of
// the HTML, and clicking degrades to a plain GET of the link. Meant for
// development runs and tests; a session serves one task at a time.
type HTTPSession struct {
	engine Engine
	client *http.Client
	ua     string
	retry  RetryPolicy
	logger *slog.Logger

	query   string
	pageNum int
	current string
	links   []Link
	hasNext bool
}

var _ Session = (*HTTPSession)(nil)

// NewHTTPSession builds an HTTP session. Unlike the Rod provider there
// is nothing to acquire, so this cannot fail.
func NewHTTPSession(cfg HTTPConfig) *HTTPSession {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPSession{
		engine: cfg.Engine.withDefaults(),
		client: cfg.Client,
		ua:     cfg.UserAgent,
		retry:  cfg.Retry,
		logger: cfg.Logger,
	}
}

// HTTPFactory returns a Factory producing independent HTTP sessions.
func HTTPFactory(cfg HTTPConfig) Factory {
	return func(ctx context.Context) (Session, error) {
		return NewHTTPSession(cfg), nil
	}
}

// Navigate GETs a page, remembering its links for a later Links call.
func (s *HTTPSession) Navigate(ctx context.Context, pageURL string) error {
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return &NavigationError{URL: pageURL, Err: err}
	}
	s.current = pageURL
	s.links, s.hasNext = s.parse(pageURL, body)
	return nil
}

// Search fetches page one of the engine's results for the query.
func (s *HTTPSession) Search(ctx context.Context, query string) error {
	s.query = query
	s.pageNum = 1
	if err := s.Navigate(ctx, s.engine.resultsURL(query, 1)); err != nil {
		return err
	}
	s.logger.Debug("browser: search fetched", "query", query, "links", len(s.links))
	return nil
}

// Links returns the anchors of the last fetched page in document order.
func (s *HTTPSession) Links(context.Context) ([]Link, error) {
	out := make([]Link, len(s.links))
	copy(out, s.links)
	return out, nil
}

// Click visits the link, which is all clicking means without a browser.
func (s *HTTPSession) Click(ctx context.Context, link Link) error {
	if link.URL == "" {
		return &ClickError{URL: link.URL, Err: fmt.Errorf("empty link")}
	}
	if _, err := s.fetch(ctx, link.URL); err != nil {
		return &ClickError{URL: link.URL, Err: err}
	}
	s.current = link.URL
	return nil
}

// NextPage advances through the URL template while the previous page
// showed a next control.
func (s *HTTPSession) NextPage(ctx context.Context) (bool, error) {
	if !s.hasNext || s.query == "" {
		return false, nil
	}
	s.pageNum++
	next := s.engine.resultsURL(s.query, s.pageNum)
	body, err := s.fetch(ctx, next)
	if err != nil {
		return false, &NavigationError{URL: next, Err: err}
	}
	s.current = next
	s.links, s.hasNext = s.parse(next, body)
	return true, nil
}

// CurrentURL reports the page the session is on.
func (s *HTTPSession) CurrentURL(context.Context) (string, error) {
	return s.current, nil
}

// Scroll is meaningless without a viewport; it succeeds quietly so the
// behavior simulator can stay provider-agnostic.
func (s *HTTPSession) Scroll(context.Context, int) error { return nil }

// Eval has no page context to run in; it succeeds quietly like Scroll.
func (s *HTTPSession) Eval(context.Context, string) error { return nil }

func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSession) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	err := s.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("User-Agent", s.ua)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return ErrChallenge
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("get: status %d", resp.StatusCode)
		}

		// Cap the read; results pages are small, everything else is noise.
		body, err = io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if s.engine.challenged(pageURL, string(body)) {
			return ErrChallenge
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// parse walks the document collecting anchors in document order and
// detecting a next-page control. Pagination anchors stay out of the
// link list.
func (s *HTTPSession) parse(pageURL string, body []byte) ([]Link, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("browser: parse page failed", "url", pageURL, "error", err)
		return nil, false
	}
	base, _ := url.Parse(pageURL)

	var links []Link
	hasNext := false
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrVal(n, "href")
			if href != "" {
				if s.isNextControl(n) {
					hasNext = true
				} else if resolved := resolveHref(base, href); resolved != "" && !seen[resolved] {
					seen[resolved] = true
					links = append(links, Link{URL: resolved, Text: nodeText(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, hasNext
}

func (s *HTTPSession) isNextControl(n *html.Node) bool {
	if attrVal(n, "id") == "pnnext" || attrVal(n, "rel") == "next" {
		return true
	}
	if label := attrVal(n, "aria-label"); strings.Contains(strings.ToLower(label), "next") {
		return true
	}
	text := nodeText(n)
	for _, t := range s.engine.NextTexts {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// resolveHref absolutizes an anchor and unwraps the /url?q= indirection
// engines put around result links in their no-JS HTML.
func resolveHref(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			return q
		}
	}
	return u.String()
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
