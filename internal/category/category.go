// Package category assigns a two-level category label to imported parts.
//
// Categorization is driven by an ordered rule list that operators edit as
// configuration, not code: each rule pairs a case-insensitive pattern with
// a category, the first matching rule wins, and a configured fallback
// catches everything else. Strict first-match-wins keeps the behavior
// predictable when operators reorder or extend the list.
package category

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFallback is used when a rule file does not configure a fallback.
var DefaultFallback = Label{Level1: "Unsorted"}

// Label is a two-level category. Level2 may be empty for top-level-only
// categories.
type Label struct {
	Level1 string `json:"level1" yaml:"level1"`
	Level2 string `json:"level2,omitempty" yaml:"level2,omitempty"`
}

// Rule maps a pattern to a category. Pattern is a regular expression
// matched case-insensitively against the part's descriptive text.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Level1  string `yaml:"level1"`
	Level2  string `yaml:"level2,omitempty"`
}

type compiledRule struct {
	re    *regexp.Regexp
	label Label
}

// RuleSet is an ordered, compiled rule list with a fallback label.
type RuleSet struct {
	rules    []compiledRule
	fallback Label
}

// New compiles rules in list order. A rule with an invalid pattern fails
// the whole set; a half-loaded rule list would categorize unpredictably.
func New(rules []Rule, fallback Label) (*RuleSet, error) {
	if fallback.Level1 == "" {
		fallback = DefaultFallback
	}

	rs := &RuleSet{fallback: fallback}
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i+1)
		}
		if r.Level1 == "" {
			return nil, fmt.Errorf("rule %d (%s): empty level1", i+1, r.Pattern)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, r.Pattern, err)
		}
		rs.rules = append(rs.rules, compiledRule{
			re:    re,
			label: Label{Level1: r.Level1, Level2: r.Level2},
		})
	}
	return rs, nil
}

// Categorize returns the label of the first rule whose pattern matches
// text, or the fallback label when none does.
func (rs *RuleSet) Categorize(text string) Label {
	for _, r := range rs.rules {
		if r.re.MatchString(text) {
			return r.label
		}
	}
	return rs.fallback
}

// Fallback returns the configured fallback label.
func (rs *RuleSet) Fallback() Label {
	return rs.fallback
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// ruleFile is the on-disk YAML layout:
//
//	fallback:
//	  level1: Unsorted
//	rules:
//	  - pattern: inductor|choke
//	    level1: Passives
//	    level2: Inductors
type ruleFile struct {
	Fallback Label  `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// LoadFile reads and compiles a rule file. Callers re-read the file per
// import run, so operators can extend coverage without a restart.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category rules %s: %w", path, err)
	}

	rs, err := New(f.Rules, f.Fallback)
	if err != nil {
		return nil, fmt.Errorf("compile category rules %s: %w", path, err)
	}
	return rs, nil
}
