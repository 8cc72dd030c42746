package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIG — Declarative inference settings (YAML/JSON)
// ============================================================================
// Consumers that don't want the built-in heuristics untouched declare their
// dataset's shape in a config file: extra measure tokens, the numeric-ratio
// threshold, and which dimensions carry hierarchies and in what role.
// Config bridges files to the functional options Infer consumes.
// ============================================================================

// Config declares inference overrides for a dataset.
type Config struct {
	Name             string          `yaml:"name" json:"name"`
	MeasureTokens    []string        `yaml:"measureTokens,omitempty" json:"measureTokens,omitempty"`
	NumericThreshold float64         `yaml:"numericThreshold,omitempty" json:"numericThreshold,omitempty"`
	Hierarchies      []HierarchyRole `yaml:"hierarchies,omitempty" json:"hierarchies,omitempty"`
	// DisableDefaults turns off the built-in Date/Product hierarchy bindings.
	DisableDefaults bool `yaml:"disableDefaults,omitempty" json:"disableDefaults,omitempty"`
}

// HierarchyRole binds one dimension to a hierarchy-building capability.
type HierarchyRole struct {
	Dimension string   `yaml:"dimension" json:"dimension"`
	Role      string   `yaml:"role" json:"role"` // "temporal" or "parent-column"
	Parent    string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Levels    []string `yaml:"levels,omitempty" json:"levels,omitempty"`
}

// LoadConfig parses a YAML (or JSON — valid JSON is valid YAML) config.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse schema config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal serializes the config back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema config: %w", err)
	}
	return out, nil
}

func (c *Config) validate() error {
	for _, h := range c.Hierarchies {
		if h.Dimension == "" {
			return fmt.Errorf("hierarchy entry is missing a dimension")
		}
		switch h.Role {
		case "temporal":
		case "parent-column":
			if h.Parent == "" {
				return fmt.Errorf("hierarchy for %q: parent-column role requires a parent", h.Dimension)
			}
		default:
			return fmt.Errorf("hierarchy for %q: unknown role %q", h.Dimension, h.Role)
		}
	}
	return nil
}

// Options converts the config into inference options.
func (c *Config) Options() []Option {
	var opts []Option
	if len(c.MeasureTokens) > 0 {
		opts = append(opts, WithMeasureTokens(c.MeasureTokens...))
	}
	if c.NumericThreshold > 0 {
		opts = append(opts, WithNumericThreshold(c.NumericThreshold))
	}
	if c.DisableDefaults {
		opts = append(opts, WithoutDefaultHierarchies())
	}
	for _, h := range c.Hierarchies {
		switch h.Role {
		case "temporal":
			opts = append(opts, WithHierarchy(h.Dimension, TemporalHierarchyBuilder{Levels: h.Levels}))
		case "parent-column":
			opts = append(opts, WithHierarchy(h.Dimension, ParentColumnHierarchyBuilder{Parent: h.Parent, Levels: h.Levels}))
		}
	}
	return opts
}
