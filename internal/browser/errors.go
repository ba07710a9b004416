package browser

import (
	"errors"
	"fmt"
)

// ErrChallenge marks a search page that turned into a bot challenge
// (CAPTCHA or "unusual traffic" interstitial). Callers should back off
// hard before the next task.
var ErrChallenge = errors.New("browser: challenge page detected")

// ErrNoNextPage reports an absent pagination control. Walking treats it
// as page-set exhaustion, not an abort.
var ErrNoNextPage = errors.New("browser: next page control not found")

// AcquireError means no session could be opened at all. Fatal for the
// cycle that requested it.
type AcquireError struct {
	Provider string
	Err      error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("browser: acquire %s session: %v", e.Provider, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// NavigationError reports a failed or timed-out page load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("browser: navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ClickError reports a link that was present but could not be
// activated.
type ClickError struct {
	URL string
	Err error
}

func (e *ClickError) Error() string {
	return fmt.Sprintf("browser: click %s: %v", e.URL, e.Err)
}

func (e *ClickError) Unwrap() error { return e.Err }
