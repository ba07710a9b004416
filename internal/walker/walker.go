// Package walker scans paginated search results one page at a time,
// applying the URL matcher to every link until the target is found or
// the page budget runs out. Each page is scanned exactly once; retry
// policy lives in the session, not here.
package walker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/rankwalk/internal/browser"
	"github.com/hazyhaar/rankwalk/internal/match"
)

// DefaultMaxPages is the page budget used when the caller supplies none.
const DefaultMaxPages = 10

// State is the walker's position in its lifecycle.
type State int

const (
	StateSearching State = iota
	StateFound
	StateExhausted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateFound:
		return "found"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the terminal outcome of one walk. Page is 0 unless the
// target was found; Clicked can be false on a found target when the
// click itself failed, and Err then carries the reason.
type Result struct {
	State   State
	Found   bool
	Clicked bool
	Page    int
	Pages   int
	Err     error
}

// Pager is the slice of the browser session the walker drives.
type Pager interface {
	Links(ctx context.Context) ([]browser.Link, error)
	Click(ctx context.Context, link browser.Link) error
	NextPage(ctx context.Context) (bool, error)
}

// Config wires the walker's collaborators.
type Config struct {
	Matcher *match.Matcher
	// Survey, when set, runs between page scans to let the behavior
	// simulator move the viewport around. It has no decision role.
	Survey func(ctx context.Context)
	Logger *slog.Logger
}

type Walker struct {
	matcher *match.Matcher
	survey  func(ctx context.Context)
	logger  *slog.Logger
}

func New(cfg Config) *Walker {
	if cfg.Matcher == nil {
		cfg.Matcher = match.New(cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Walker{matcher: cfg.Matcher, survey: cfg.Survey, logger: cfg.Logger}
}

// Walk scans up to maxPages result pages for a link matching rule. The
// first match in document order wins and is clicked. Walk always
// terminates in StateFound, StateExhausted or StateAborted.
func (w *Walker) Walk(ctx context.Context, p Pager, rule *match.Rule, maxPages int) Result {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	res := Result{State: StateSearching}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			res.State = StateAborted
			res.Err = fmt.Errorf("walker: page %d: %w", page, err)
			return res
		}

		links, err := p.Links(ctx)
		if err != nil {
			res.State = StateAborted
			res.Err = fmt.Errorf("walker: scan page %d: %w", page, err)
			return res
		}
		res.Pages = page
		w.logger.Debug("walker: page scanned", "page", page, "links", len(links))

		if link, ok := w.firstMatch(links, rule); ok {
			res.State = StateFound
			res.Found = true
			res.Page = page
			if err := p.Click(ctx, link); err != nil {
				res.Err = err
				w.logger.Warn("walker: target found but click failed", "page", page, "url", link.URL, "error", err)
			} else {
				res.Clicked = true
			}
			return res
		}

		if page >= maxPages {
			res.State = StateExhausted
			return res
		}

		if w.survey != nil {
			w.survey(ctx)
		}

		ok, err := p.NextPage(ctx)
		if err != nil {
			res.State = StateAborted
			res.Err = fmt.Errorf("walker: advance from page %d: %w", page, err)
			return res
		}
		if !ok {
			res.State = StateExhausted
			res.Err = browser.ErrNoNextPage
			return res
		}
	}
}

func (w *Walker) firstMatch(links []browser.Link, rule *match.Rule) (browser.Link, bool) {
	for _, l := range links {
		if w.matcher.Matches(l.URL, rule) {
			return l, true
		}
	}
	return browser.Link{}, false
}
