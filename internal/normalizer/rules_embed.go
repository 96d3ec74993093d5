package normalizer

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/cleaning.yaml
var cleaningYAML []byte

// RulesConfig holds the cleaning rules loaded from YAML
type RulesConfig struct {
	Replacements  map[string]string `yaml:"replacements"`
	NoisePatterns map[string]string `yaml:"noise_patterns"`
}

// LoadRulesConfig loads the embedded cleaning rules
func LoadRulesConfig() (*RulesConfig, error) {
	return ParseRulesConfig(cleaningYAML)
}

// ParseRulesConfig decodes rules from YAML
func ParseRulesConfig(data []byte) (*RulesConfig, error) {
	config := &RulesConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse cleaning rules: %w", err)
	}
	return config, nil
}

// compile returns the noise patterns sorted by name
func (c *RulesConfig) compile() ([]*regexp.Regexp, error) {
	names := make([]string, 0, len(c.NoisePatterns))
	for name := range c.NoisePatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*regexp.Regexp, 0, len(names))
	for _, name := range names {
		re, err := regexp.Compile(c.NoisePatterns[name])
		if err != nil {
			return nil, fmt.Errorf("noise pattern %s: %w", name, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// replacer builds a replacer with longer keys tried first
func (c *RulesConfig) replacer() *strings.Replacer {
	keys := make([]string, 0, len(c.Replacements))
	for k := range c.Replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, c.Replacements[k])
	}
	return strings.NewReplacer(pairs...)
}
