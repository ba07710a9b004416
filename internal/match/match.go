// Package match decides whether a discovered link satisfies a target's
// match policy. Rules are compiled once at configuration time; matching
// itself is pure and never returns an error — a broken pattern is logged
// and treated as no-match.
package match

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Policy selects how a target identifier is compared against found URLs.
type Policy string

const (
	PolicyExact    Policy = "exact"
	PolicyContains Policy = "contains"
	PolicyDomain   Policy = "domain"
	PolicyRegex    Policy = "regex"
)

// ParsePolicy maps a configuration string to a Policy. The empty string
// defaults to contains; anything else unrecognized is a configuration
// error rather than a silent fallback.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PolicyContains, nil
	case PolicyExact:
		return PolicyExact, nil
	case PolicyContains:
		return PolicyContains, nil
	case PolicyDomain:
		return PolicyDomain, nil
	case PolicyRegex:
		return PolicyRegex, nil
	default:
		return "", fmt.Errorf("match: unknown policy %q", s)
	}
}

// Rule is a compiled target descriptor. Build with Compile so regex
// patterns fail at configuration time, not per search.
type Rule struct {
	Raw    string
	Policy Policy

	normalized string
	host       string
	re         *regexp.Regexp
}

// Compile validates a target identifier under the given policy and
// precomputes whatever the policy needs at match time.
func Compile(raw string, policy Policy) (*Rule, error) {
	r := &Rule{Raw: raw, Policy: policy}
	switch policy {
	case PolicyRegex:
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("match: compile pattern %q: %w", raw, err)
		}
		r.re = re
	case PolicyDomain:
		r.normalized = Normalize(raw)
		r.host = hostOf(r.normalized)
		if r.host == "" {
			return nil, fmt.Errorf("match: target %q has no host for domain policy", raw)
		}
	default:
		r.normalized = Normalize(raw)
	}
	return r, nil
}

// Matcher applies rules to found URLs. Safe for concurrent use.
type Matcher struct {
	logger *slog.Logger

	mu     sync.Mutex
	warned map[string]struct{}
}

// New returns a Matcher logging through the given logger, or
// slog.Default when nil.
func New(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger, warned: make(map[string]struct{})}
}

// Matches reports whether found satisfies the rule. An empty found URL
// never matches. Policy failures (uncompiled or invalid regex, unknown
// policy value) degrade: regex failures are no-match, unknown policies
// use contains semantics, both logged once per rule.
func (m *Matcher) Matches(found string, r *Rule) bool {
	if r == nil {
		return false
	}
	f := Normalize(found)
	if f == "" {
		return false
	}

	switch r.Policy {
	case PolicyExact:
		return f == r.target()
	case PolicyContains:
		return r.containsIn(f)
	case PolicyDomain:
		host := r.host
		if host == "" {
			host = hostOf(Normalize(r.Raw))
		}
		return host != "" && hostOf(f) == host
	case PolicyRegex:
		re := r.re
		if re == nil {
			var err error
			re, err = regexp.Compile(r.Raw)
			if err != nil {
				m.warnOnce(r.Raw, "match: invalid pattern, treating as no-match", "pattern", r.Raw, "error", err)
				return false
			}
		}
		return re.MatchString(f)
	default:
		m.warnOnce(string(r.Policy)+"|"+r.Raw, "match: unknown policy, using contains semantics", "policy", string(r.Policy), "target", r.Raw)
		return r.containsIn(f)
	}
}

func (r *Rule) target() string {
	if r.normalized != "" {
		return r.normalized
	}
	return Normalize(r.Raw)
}

func (r *Rule) containsIn(found string) bool {
	t := r.target()
	if t == "" {
		return false
	}
	return strings.Contains(found, t)
}

func (m *Matcher) warnOnce(key, msg string, args ...any) {
	m.mu.Lock()
	_, seen := m.warned[key]
	if !seen {
		m.warned[key] = struct{}{}
	}
	m.mu.Unlock()
	if !seen {
		m.logger.Warn(msg, args...)
	}
}
