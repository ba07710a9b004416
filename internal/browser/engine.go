package browser

import (
	"net/url"
	"strconv"
	"strings"
)

// Engine describes how to drive one search engine: where to type, which
// anchors count as results, and how to reach the next page. Selector
// lists are tried in order so markup drift degrades instead of breaking.
type Engine struct {
	Name    string
	BaseURL string

	// ResultsTemplate builds a results URL directly, for sessions that
	// do not type into the search box. Placeholders: {query}, {start}.
	ResultsTemplate string
	PageSize        int

	SearchInput      []string
	LinkSelectors    []string
	NextSelectors    []string
	NextTexts        []string
	ChallengeMarkers []string
}

// Google returns the default engine descriptor.
func Google() Engine {
	return Engine{
		Name:            "google",
		BaseURL:         "https://www.google.com",
		ResultsTemplate: "https://www.google.com/search?q={query}&start={start}",
		PageSize:        10,
		SearchInput:     []string{`textarea[name="q"]`, `input[name="q"]`},
		LinkSelectors:   []string{`.yuRUbf a`, `.g a[href]`, `h3 a`},
		NextSelectors:   []string{`#pnnext`, `a[aria-label="Next page"]`},
		NextTexts:       []string{"下一頁", "Next"},
		ChallengeMarkers: []string{
			"unusual traffic",
			"/sorry/",
			"recaptcha",
			"captcha",
		},
	}
}

func (e Engine) withDefaults() Engine {
	def := Google()
	if e.Name == "" {
		e.Name = def.Name
	}
	if e.BaseURL == "" {
		e.BaseURL = def.BaseURL
	}
	if e.ResultsTemplate == "" {
		e.ResultsTemplate = def.ResultsTemplate
	}
	if e.PageSize <= 0 {
		e.PageSize = def.PageSize
	}
	if len(e.SearchInput) == 0 {
		e.SearchInput = def.SearchInput
	}
	if len(e.LinkSelectors) == 0 {
		e.LinkSelectors = def.LinkSelectors
	}
	if len(e.NextSelectors) == 0 {
		e.NextSelectors = def.NextSelectors
	}
	if len(e.NextTexts) == 0 {
		e.NextTexts = def.NextTexts
	}
	if len(e.ChallengeMarkers) == 0 {
		e.ChallengeMarkers = def.ChallengeMarkers
	}
	return e
}

// resultsURL renders the template for a 1-based page number.
func (e Engine) resultsURL(query string, page int) string {
	if page < 1 {
		page = 1
	}
	s := strings.ReplaceAll(e.ResultsTemplate, "{query}", url.QueryEscape(query))
	return strings.ReplaceAll(s, "{start}", strconv.Itoa((page-1)*e.PageSize))
}

// challenged reports whether page content or URL looks like a bot check.
func (e Engine) challenged(pageURL, content string) bool {
	lc := strings.ToLower(content)
	lu := strings.ToLower(pageURL)
	for _, marker := range e.ChallengeMarkers {
		m := strings.ToLower(marker)
		if strings.Contains(lu, m) || strings.Contains(lc, m) {
			return true
		}
	}
	return false
}
