package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kyleking/gh-runwarden/internal/github"
)

// presetRerunOnFailure is the scalar shorthand for RerunOnFailure.
const presetRerunOnFailure = "rerun_on_failure"

// ParseRules decodes a YAML sequence of rules.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// MarshalRules encodes rules in their full mapping form.
func MarshalRules(rules []Rule) ([]byte, error) {
	if rules == nil {
		rules = []Rule{}
	}
	return yaml.Marshal(rules)
}

// rawRule mirrors Rule plus the one-key shorthand forms, e.g.
//
//	- message_contains: "[branch-2"
//	- actor_not_in: [alice, bob]
type rawRule struct {
	Name       string             `yaml:"name"`
	Kind       Kind               `yaml:"kind"`
	Action     Action             `yaml:"action"`
	Statuses   []github.RunStatus `yaml:"statuses"`
	Actors     []string           `yaml:"actors"`
	Substring  string             `yaml:"substring"`
	Prefix     string             `yaml:"prefix"`
	Status     github.RunStatus   `yaml:"status"`
	Conclusion github.Conclusion  `yaml:"conclusion"`

	StatusInShort          []github.RunStatus `yaml:"status_in"`
	ActorNotInShort        []string           `yaml:"actor_not_in"`
	MessageContainsShort   string             `yaml:"message_contains"`
	SHAPrefixMismatchShort string             `yaml:"sha_prefix_mismatch"`
}

// UnmarshalYAML accepts a full mapping, a one-key shorthand mapping, or the
// rerun_on_failure scalar preset.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == presetRerunOnFailure {
			*r = RerunOnFailure()
			return nil
		}
		return fmt.Errorf("line %d: unknown rule preset %q", node.Line, node.Value)

	case yaml.MappingNode:
		var raw rawRule
		if err := node.Decode(&raw); err != nil {
			return err
		}
		rule := Rule{
			Name:       raw.Name,
			Kind:       raw.Kind,
			Action:     raw.Action,
			Statuses:   raw.Statuses,
			Actors:     raw.Actors,
			Substring:  raw.Substring,
			Prefix:     raw.Prefix,
			Status:     raw.Status,
			Conclusion: raw.Conclusion,
		}

		shorthands := 0
		if raw.StatusInShort != nil {
			shorthands++
			rule.Kind, rule.Statuses = KindStatusIn, raw.StatusInShort
		}
		if raw.ActorNotInShort != nil {
			shorthands++
			rule.Kind, rule.Actors = KindActorNotIn, raw.ActorNotInShort
		}
		if raw.MessageContainsShort != "" {
			shorthands++
			rule.Kind, rule.Substring = KindMessageContains, raw.MessageContainsShort
		}
		if raw.SHAPrefixMismatchShort != "" {
			shorthands++
			rule.Kind, rule.Prefix = KindSHAPrefixMismatch, raw.SHAPrefixMismatchShort
		}
		if shorthands > 1 || (shorthands == 1 && raw.Kind != "") {
			return fmt.Errorf("line %d: a rule takes exactly one kind", node.Line)
		}

		*r = rule
		return nil

	default:
		return fmt.Errorf("line %d: a rule must be a mapping or a preset name", node.Line)
	}
}
