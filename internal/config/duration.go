package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration reads YAML scalars as either bare numbers of seconds or Go
// duration strings, so "wait_timeout: 10" and "wait_timeout: 10s" mean
// the same thing.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %s", node.Tag)
	}
	switch node.Tag {
	case "!!int", "!!float":
		var sec float64
		if err := node.Decode(&sec); err != nil {
			return err
		}
		*d = Duration(sec * float64(time.Second))
		return nil
	default:
		parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
		if err != nil {
			return fmt.Errorf("invalid duration %q", node.Value)
		}
		*d = Duration(parsed)
		return nil
	}
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Window is a [min, max] duration interval.
type Window struct {
	Min Duration `yaml:"min"`
	Max Duration `yaml:"max"`
}
