package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodConfig configures the Chrome-backed session.
type RodConfig struct {
	Engine Engine

	// RemoteURL attaches to an existing Chrome over CDP. Empty = launch
	// a local one.
	RemoteURL string
	Headless  bool

	// UserAgents rotates: each session picks one at random. Empty
	// keeps Chrome's own.
	UserAgents []string

	// ResourceBlocking lists resource types to drop (images, fonts,
	// media, stylesheets). Less traffic, faster pages.
	ResourceBlocking []string

	// WaitTimeout bounds navigations and element lookups. Default 10s.
	WaitTimeout time.Duration

	// TypeDelay paces keystrokes in the search box; nil types without
	// pauses.
	TypeDelay func() time.Duration

	Retry  RetryPolicy
	Logger *slog.Logger
}

func (c *RodConfig) defaults() {
	c.Engine = c.Engine.withDefaults()
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RodSession drives a real Chrome through rod with the stealth page
// setup applied. One session owns one browser and one tab.
type RodSession struct {
	cfg    RodConfig
	engine Engine
	logger *slog.Logger

	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

var _ Session = (*RodSession)(nil)

// NewRodSession launches (or attaches to) Chrome and prepares a stealth
// tab. Every failure on this path is an *AcquireError: without a
// browser there is nothing to salvage.
func NewRodSession(ctx context.Context, cfg RodConfig) (*RodSession, error) {
	cfg.defaults()
	s := &RodSession{cfg: cfg, engine: cfg.Engine, logger: cfg.Logger}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		if ua := s.pickUserAgent(); ua != "" {
			l = l.Set("user-agent", ua)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, &AcquireError{Provider: "rod", Err: fmt.Errorf("launch: %w", err)}
		}
		wsURL = u
		s.lnch = l
		s.logger.Info("browser: launched local chrome", "headless", cfg.Headless)
	} else {
		s.logger.Info("browser: attaching to remote chrome", "url", wsURL)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, &AcquireError{Provider: "rod", Err: fmt.Errorf("connect: %w", err)}
	}
	s.browser = b

	if err := b.IgnoreCertErrors(true); err != nil {
		s.logger.Warn("browser: ignore cert errors failed", "error", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		s.cleanup()
		return nil, &AcquireError{Provider: "rod", Err: fmt.Errorf("stealth page: %w", err)}
	}
	s.page = page

	if len(cfg.ResourceBlocking) > 0 {
		if err := blockResources(page, cfg.ResourceBlocking); err != nil {
			s.logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	return s, nil
}

// RodFactory returns a Factory producing independent Rod sessions.
func RodFactory(cfg RodConfig) Factory {
	return func(ctx context.Context) (Session, error) {
		return NewRodSession(ctx, cfg)
	}
}

func (s *RodSession) pickUserAgent() string {
	if len(s.cfg.UserAgents) == 0 {
		return ""
	}
	return s.cfg.UserAgents[rand.IntN(len(s.cfg.UserAgents))]
}

// Navigate loads a URL and waits for the load event.
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	err := s.cfg.Retry.Do(ctx, func() error {
		navCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()

		if err := s.page.Context(navCtx).Navigate(url); err != nil {
			return err
		}
		if err := s.page.Context(navCtx).WaitLoad(); err != nil {
			s.logger.Warn("browser: wait load timeout", "url", url, "error", err)
		}
		return s.checkChallenge(navCtx)
	})
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// Search opens the engine, types the query with human cadence and
// submits it, landing on page one of the results.
func (s *RodSession) Search(ctx context.Context, query string) error {
	if err := s.Navigate(ctx, s.engine.BaseURL); err != nil {
		return err
	}

	err := s.cfg.Retry.Do(ctx, func() error {
		box, err := s.findSearchBox(ctx)
		if err != nil {
			return err
		}
		if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("focus search box: %w", err)
		}
		// Overwrite whatever a previous attempt left in the box.
		if err := box.SelectAllText(); err == nil {
			_ = box.Type(input.Backspace)
		}
		for _, r := range query {
			if err := box.Input(string(r)); err != nil {
				return fmt.Errorf("type query: %w", err)
			}
			if s.cfg.TypeDelay != nil {
				if err := pause(ctx, s.cfg.TypeDelay()); err != nil {
					return err
				}
			}
		}
		if err := s.page.Keyboard.Press(input.Enter); err != nil {
			return fmt.Errorf("submit query: %w", err)
		}

		loadCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()
		if err := s.page.Context(loadCtx).WaitLoad(); err != nil {
			s.logger.Warn("browser: results load timeout", "query", query, "error", err)
		}
		return s.checkChallenge(loadCtx)
	})
	if err != nil {
		return &NavigationError{URL: s.engine.BaseURL, Err: fmt.Errorf("search %q: %w", query, err)}
	}

	s.logger.Debug("browser: search submitted", "query", query)
	return nil
}

func (s *RodSession) findSearchBox(ctx context.Context) (*rod.Element, error) {
	boxCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
	defer cancel()

	var lastErr error
	for _, sel := range s.engine.SearchInput {
		el, err := s.page.Context(boxCtx).Element(sel)
		if err == nil {
			return el, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search box not found: %w", lastErr)
}

// Links harvests the result anchors of the current page. Selector
// lists are tried in order; the first one yielding anchors wins, so the
// returned slice follows document order.
func (s *RodSession) Links(ctx context.Context) ([]Link, error) {
	res, err := s.page.Context(ctx).Eval(`(selectors) => {
		for (const sel of selectors) {
			const nodes = document.querySelectorAll(sel);
			if (nodes.length === 0) continue;
			const seen = new Set();
			const out = [];
			for (const a of nodes) {
				const href = a.href || '';
				if (!href || seen.has(href)) continue;
				seen.add(href);
				out.push({href: href, text: (a.innerText || '').trim()});
			}
			if (out.length > 0) return out;
		}
		return [];
	}`, s.engine.LinkSelectors)
	if err != nil {
		return nil, fmt.Errorf("browser: harvest links: %w", err)
	}

	var links []Link
	for _, item := range res.Value.Arr() {
		links = append(links, Link{
			URL:  item.Get("href").Str(),
			Text: item.Get("text").Str(),
		})
	}
	s.logger.Debug("browser: links harvested", "count", len(links))
	return links, nil
}

// Click scrolls the link into view and clicks it like a pointer would.
func (s *RodSession) Click(ctx context.Context, link Link) error {
	err := s.cfg.Retry.Do(ctx, func() error {
		clickCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()

		el, err := s.page.Context(clickCtx).ElementByJS(rod.Eval(
			`(href) => Array.from(document.querySelectorAll('a')).find(a => a.href === href)`,
			link.URL,
		))
		if err != nil {
			return fmt.Errorf("locate link: %w", err)
		}
		if err := el.ScrollIntoView(); err != nil {
			s.logger.Debug("browser: scroll into view failed", "error", err)
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		if err := s.page.Context(clickCtx).WaitLoad(); err != nil {
			s.logger.Debug("browser: post-click load timeout", "error", err)
		}
		return nil
	})
	if err != nil {
		return &ClickError{URL: link.URL, Err: err}
	}
	s.logger.Debug("browser: link clicked", "url", link.URL)
	return nil
}

// NextPage locates the pagination control by selector, falling back to
// link text, and activates it. False with nil error means the results
// genuinely end here.
func (s *RodSession) NextPage(ctx context.Context) (bool, error) {
	var control *rod.Element
	for _, sel := range s.engine.NextSelectors {
		ok, el, err := s.page.Context(ctx).Has(sel)
		if err != nil {
			continue
		}
		if ok {
			control = el
			break
		}
	}
	if control == nil {
		for _, text := range s.engine.NextTexts {
			ok, el, err := s.page.Context(ctx).HasR("a", text)
			if err != nil {
				continue
			}
			if ok {
				control = el
				break
			}
		}
	}
	if control == nil {
		return false, nil
	}

	err := s.cfg.Retry.Do(ctx, func() error {
		advCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()

		if err := control.ScrollIntoView(); err != nil {
			s.logger.Debug("browser: scroll to pagination failed", "error", err)
		}
		if err := control.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		if err := s.page.Context(advCtx).WaitLoad(); err != nil {
			s.logger.Warn("browser: next page load timeout", "error", err)
		}
		return s.checkChallenge(advCtx)
	})
	if err != nil {
		return false, fmt.Errorf("browser: advance page: %w", err)
	}
	return true, nil
}

// CurrentURL reports where the tab is.
func (s *RodSession) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

// Scroll moves the viewport in a few mouse-wheel steps.
func (s *RodSession) Scroll(ctx context.Context, dy int) error {
	if err := s.page.Context(ctx).Mouse.Scroll(0, float64(dy), 3); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// Eval runs a script in page context, discarding the result.
func (s *RodSession) Eval(ctx context.Context, js string) error {
	if _, err := s.page.Context(ctx).Eval(js); err != nil {
		return fmt.Errorf("browser: eval: %w", err)
	}
	return nil
}

// Close shuts the tab, the browser and the launcher down.
func (s *RodSession) Close() error {
	s.cleanup()
	return nil
}

func (s *RodSession) cleanup() {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// checkChallenge sniffs the current page for bot-check markers and
// returns ErrChallenge when one is present.
func (s *RodSession) checkChallenge(ctx context.Context) error {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return nil
	}
	res, err := s.page.Context(ctx).Eval(
		`() => document.title + ' ' + (document.body ? document.body.innerText.slice(0, 3000) : '')`)
	if err != nil {
		return nil
	}
	if s.engine.challenged(info.URL, res.Value.Str()) {
		s.logger.Warn("browser: challenge page detected", "url", info.URL)
		return ErrChallenge
	}
	return nil
}

func blockResources(page *rod.Page, types []string) error {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[t] = true
	}

	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return err
	}
	go router.Run()
	return nil
}

func shouldBlock(blocked map[string]bool, resType string) bool {
	switch resType {
	case "Image":
		return blocked["images"]
	case "Font":
		return blocked["fonts"]
	case "Media":
		return blocked["media"]
	case "Stylesheet":
		return blocked["stylesheets"]
	}
	return false
}

func pause(ctx context.Context, d time.Duration) error {
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
