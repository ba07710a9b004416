// Package browser provides the search-engine session collaborators: a
// Chrome-backed provider driven through rod, and a plain HTTP provider
// for development and tests. Sessions own their retry policy; callers
// see only the final success or failure of each operation.
package browser

import "context"

// Link is one anchor discovered on a results page, in document order.
type Link struct {
	URL  string
	Text string
}

// Session is the browser surface the search core drives. One session
// serves one task at a time, start to finish.
type Session interface {
	// Navigate loads a URL. Returns *NavigationError on timeout.
	Navigate(ctx context.Context, url string) error
	// Search submits a query to the engine and lands on page one of
	// the results.
	Search(ctx context.Context, query string) error
	// Links returns the result anchors of the current page in
	// document order.
	Links(ctx context.Context) ([]Link, error)
	// Click activates a previously returned link. Returns *ClickError
	// when the element cannot be activated.
	Click(ctx context.Context, link Link) error
	// NextPage advances to the next results page. False with a nil
	// error means the pagination control is absent.
	NextPage(ctx context.Context) (bool, error)
	// CurrentURL reports the page the session is on.
	CurrentURL(ctx context.Context) (string, error)
	// Scroll moves the viewport by dy pixels (negative scrolls up).
	Scroll(ctx context.Context, dy int) error
	// Eval runs a script in page context. Browserless providers treat
	// it as a no-op, like Scroll.
	Eval(ctx context.Context, js string) error
	Close() error
}

// Factory opens a fresh session. A failure here is fatal for the whole
// cycle, so implementations wrap it in *AcquireError.
type Factory func(ctx context.Context) (Session, error)
