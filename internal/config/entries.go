package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// KeywordEntry is one search term. In YAML it is either a bare string
// or a mapping; a bare string means an enabled keyword at priority 0.
type KeywordEntry struct {
	Keyword  string `yaml:"keyword"`
	Enabled  *bool  `yaml:"enabled"` // omitted means enabled
	Priority int    `yaml:"priority"`
	MaxPages int    `yaml:"max_pages"` // overrides general.max_pages
}

func (k *KeywordEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Keyword = node.Value
		return nil
	}
	type plain KeywordEntry
	if err := node.Decode((*plain)(k)); err != nil {
		return fmt.Errorf("keyword entry: %w", err)
	}
	return nil
}

// TargetEntry is one destination URL with its match policy.
type TargetEntry struct {
	URL         string   `yaml:"url"`
	Enabled     *bool    `yaml:"enabled"` // omitted means enabled
	Priority    int      `yaml:"priority"`
	MatchType   string   `yaml:"match_type"` // exact | contains | domain | regex
	Keywords    []string `yaml:"keywords"`   // empty applies to all keywords
	MaxAttempts int      `yaml:"max_attempts"`
}
