package rankwalk

import (
	"context"
	"errors"

	"github.com/hazyhaar/rankwalk/internal/browser"
)

// Session errors callers branch on, re-exported from internal.
type (
	AcquireError    = browser.AcquireError
	NavigationError = browser.NavigationError
	ClickError      = browser.ClickError
)

// ErrChallenge marks a search page that turned into a bot challenge.
var ErrChallenge = browser.ErrChallenge

// ErrNoNextPage reports an absent pagination control.
var ErrNoNextPage = browser.ErrNoNextPage

// errorKind buckets a task failure for the error histogram. Sentinels
// win over the error type carrying them: a navigation that ran into a
// challenge page counts as a challenge.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, browser.ErrChallenge) {
		return "challenge"
	}
	if errors.Is(err, browser.ErrNoNextPage) {
		return "pagination"
	}

	var (
		acquire *browser.AcquireError
		nav     *browser.NavigationError
		click   *browser.ClickError
	)
	switch {
	case errors.As(err, &acquire):
		return "acquire"
	case errors.As(err, &nav):
		return "navigation"
	case errors.As(err, &click):
		return "click"
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "other"
}
