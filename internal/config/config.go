// Package config loads and validates the rankwalk YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/rankwalk/internal/match"
	"github.com/hazyhaar/rankwalk/internal/registry"
)

// Config is the top-level rankwalk configuration.
type Config struct {
	General    GeneralConfig  `yaml:"general"`
	Browser    BrowserConfig  `yaml:"browser"`
	Limits     LimitsConfig   `yaml:"limits"`
	Storage    StorageConfig  `yaml:"storage"`
	Keywords   []KeywordEntry `yaml:"keywords"`
	TargetURLs []TargetEntry  `yaml:"target_urls"`
}

// GeneralConfig controls search pacing and page budgets.
type GeneralConfig struct {
	MaxPages        int             `yaml:"max_pages"`
	WaitTimeout     Duration        `yaml:"wait_timeout"`
	MinDelay        Duration        `yaml:"min_delay"`
	MaxDelay        Duration        `yaml:"max_delay"`
	PageDelay       Window          `yaml:"page_delay"` // dwell on the clicked target
	RandomExecution RandomExecution `yaml:"random_execution"`
}

// RandomExecution switches the cycle from the sequential cross product
// to drawn keyword/target pairs.
type RandomExecution struct {
	Enabled                   bool     `yaml:"enabled"`
	TotalIterations           int      `yaml:"total_iterations"`
	RandomKeywordSelection    bool     `yaml:"random_keyword_selection"` // false = round-robin
	RandomURLSelection        bool     `yaml:"random_url_selection"`     // false = round-robin
	MinDelayBetweenIterations Duration `yaml:"min_delay_between_iterations"`
	MaxDelayBetweenIterations Duration `yaml:"max_delay_between_iterations"`
}

// BrowserConfig controls the session provider.
type BrowserConfig struct {
	Provider         string   `yaml:"provider"`   // rod | http
	Remote           string   `yaml:"remote"`     // ws:// devtools URL; empty launches locally
	EngineURL        string   `yaml:"engine_url"` // search engine base; empty uses the default
	Headless         *bool    `yaml:"headless"`
	UserAgents       []string `yaml:"user_agents"`
	ResourceBlocking []string `yaml:"resource_blocking"` // images | fonts | media | stylesheets
}

// HeadlessOn reports the headless setting, defaulting to true.
func (b BrowserConfig) HeadlessOn() bool { return b.Headless == nil || *b.Headless }

// LimitsConfig paces task execution. Zero counters take the defaults;
// negative means unlimited.
type LimitsConfig struct {
	MinInterval     Duration       `yaml:"min_interval"`
	Hourly          int            `yaml:"hourly"`
	Daily           int            `yaml:"daily"`
	LongBreak       BreakConfig    `yaml:"long_break"`
	FailureCooldown CooldownConfig `yaml:"failure_cooldown"`
}

// BreakConfig inserts a long pause every N completed tasks.
type BreakConfig struct {
	Every int      `yaml:"every"` // negative disables
	Min   Duration `yaml:"min"`
	Max   Duration `yaml:"max"`
}

// CooldownConfig imposes a pause after consecutive failures.
type CooldownConfig struct {
	After int      `yaml:"after"` // negative disables
	Min   Duration `yaml:"min"`
	Max   Duration `yaml:"max"`
}

// StorageConfig controls outcome persistence.
type StorageConfig struct {
	Path string `yaml:"path"` // empty keeps outcomes in memory only
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse unmarshals, defaults, and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.General.MaxPages <= 0 {
		c.General.MaxPages = 10
	}
	if c.General.WaitTimeout <= 0 {
		c.General.WaitTimeout = Duration(10 * time.Second)
	}
	if c.General.MinDelay <= 0 {
		c.General.MinDelay = Duration(2 * time.Second)
	}
	if c.General.MaxDelay <= 0 {
		c.General.MaxDelay = Duration(5 * time.Second)
	}
	if c.General.PageDelay.Min <= 0 {
		c.General.PageDelay.Min = Duration(20 * time.Second)
	}
	if c.General.PageDelay.Max <= 0 {
		c.General.PageDelay.Max = Duration(30 * time.Second)
	}
	if c.General.RandomExecution.TotalIterations <= 0 {
		c.General.RandomExecution.TotalIterations = 10
	}
	if c.General.RandomExecution.MinDelayBetweenIterations <= 0 {
		c.General.RandomExecution.MinDelayBetweenIterations = c.General.MinDelay
	}
	if c.General.RandomExecution.MaxDelayBetweenIterations <= 0 {
		c.General.RandomExecution.MaxDelayBetweenIterations = c.General.MaxDelay
	}

	if c.Browser.Provider == "" {
		c.Browser.Provider = "rod"
	}

	if c.Limits.Hourly == 0 {
		c.Limits.Hourly = 5
	}
	if c.Limits.Daily == 0 {
		c.Limits.Daily = 20
	}
	if c.Limits.LongBreak.Every == 0 {
		c.Limits.LongBreak.Every = 3
	}
	if c.Limits.LongBreak.Min <= 0 {
		c.Limits.LongBreak.Min = Duration(2 * time.Minute)
	}
	if c.Limits.LongBreak.Max <= 0 {
		c.Limits.LongBreak.Max = Duration(5 * time.Minute)
	}
	if c.Limits.FailureCooldown.After == 0 {
		c.Limits.FailureCooldown.After = 3
	}
	if c.Limits.FailureCooldown.Min <= 0 {
		c.Limits.FailureCooldown.Min = Duration(5 * time.Minute)
	}
	if c.Limits.FailureCooldown.Max <= 0 {
		c.Limits.FailureCooldown.Max = Duration(10 * time.Minute)
	}
}

// Validate checks the whole document and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Browser.Provider {
	case "rod", "http":
	default:
		add("browser: unsupported provider %q (use rod or http)", c.Browser.Provider)
	}
	for _, class := range c.Browser.ResourceBlocking {
		switch class {
		case "images", "fonts", "media", "stylesheets":
		default:
			add("browser: unknown resource class %q", class)
		}
	}

	if c.General.MinDelay > c.General.MaxDelay {
		add("general: min_delay exceeds max_delay")
	}
	if c.General.PageDelay.Min > c.General.PageDelay.Max {
		add("general: page_delay min exceeds max")
	}
	re := c.General.RandomExecution
	if re.Enabled && re.MinDelayBetweenIterations > re.MaxDelayBetweenIterations {
		add("general: random_execution min delay exceeds max delay")
	}
	if c.Limits.LongBreak.Min > c.Limits.LongBreak.Max {
		add("limits: long_break min exceeds max")
	}
	if c.Limits.FailureCooldown.Min > c.Limits.FailureCooldown.Max {
		add("limits: failure_cooldown min exceeds max")
	}

	if len(c.Keywords) == 0 {
		add("keywords: at least one entry is required")
	}
	seen := make(map[string]bool)
	for i, k := range c.Keywords {
		switch text := strings.TrimSpace(k.Keyword); {
		case text == "":
			add("keywords[%d]: keyword is required", i)
		case seen[text]:
			add("keywords[%d]: duplicate keyword %q", i, text)
		default:
			seen[text] = true
		}
	}

	if len(c.TargetURLs) == 0 {
		add("target_urls: at least one entry is required")
	}
	for i, t := range c.TargetURLs {
		if strings.TrimSpace(t.URL) == "" {
			add("target_urls[%d]: url is required", i)
			continue
		}
		policy, err := match.ParsePolicy(t.MatchType)
		if err != nil {
			add("target_urls[%d]: %v", i, err)
			continue
		}
		if _, err := match.Compile(t.URL, policy); err != nil {
			add("target_urls[%d]: %v", i, err)
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// RegistryKeywords converts the keyword entries for a registry load.
func (c *Config) RegistryKeywords() []registry.Keyword {
	out := make([]registry.Keyword, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		out = append(out, registry.Keyword{
			Text:     strings.TrimSpace(k.Keyword),
			Enabled:  k.Enabled == nil || *k.Enabled,
			Priority: k.Priority,
			MaxPages: k.MaxPages,
		})
	}
	return out
}

// RegistryTargets converts the target entries for a registry load.
func (c *Config) RegistryTargets() ([]registry.Target, error) {
	out := make([]registry.Target, 0, len(c.TargetURLs))
	for _, t := range c.TargetURLs {
		policy, err := match.ParsePolicy(t.MatchType)
		if err != nil {
			return nil, fmt.Errorf("config: target %q: %w", t.URL, err)
		}
		out = append(out, registry.Target{
			URL:         strings.TrimSpace(t.URL),
			Enabled:     t.Enabled == nil || *t.Enabled,
			Priority:    t.Priority,
			Policy:      policy,
			Keywords:    t.Keywords,
			MaxAttempts: t.MaxAttempts,
		})
	}
	return out, nil
}

// ConfigError lists every problem found in one validation pass so a
// broken file can be fixed in one edit.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}
