package policy

import (
	"fmt"
	"slices"

	"github.com/kyleking/gh-runwarden/internal/github"
)

// Matcher evaluates an ordered rule list, first match wins.
type Matcher struct {
	rules []Rule
}

// NewMatcher validates rules and returns a matcher over them.
func NewMatcher(rules ...Rule) (*Matcher, error) {
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return &Matcher{rules: slices.Clone(rules)}, nil
}

// Rules returns a copy of the rule list.
func (m *Matcher) Rules() []Rule {
	return slices.Clone(m.rules)
}

// Match returns the first rule that matches run under statusClass.
func (m *Matcher) Match(run github.WorkflowRun, statusClass github.RunStatus) (Rule, bool) {
	for _, r := range m.rules {
		if r.Matches(run, statusClass) {
			return r, true
		}
	}
	return Rule{}, false
}
