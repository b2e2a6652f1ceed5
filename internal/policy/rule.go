// Package policy decides which workflow runs a governance pass acts on.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kyleking/gh-runwarden/internal/github"
)

// Kind selects the predicate a Rule evaluates.
type Kind string

// Rule kinds.
const (
	KindStatusIn            Kind = "status_in"
	KindActorNotIn          Kind = "actor_not_in"
	KindMessageContains     Kind = "message_contains"
	KindSHAPrefixMismatch   Kind = "sha_prefix_mismatch"
	KindStatusAndConclusion Kind = "status_and_conclusion"
)

// Action is what happens to a matched run.
type Action string

// Actions.
const (
	ActionCancel Action = "cancel"
	ActionRerun  Action = "rerun"
)

// ErrInvalidRule wraps every rule validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// Rule is a declarative predicate over a workflow run.
//
// Statuses scopes the rule to runs currently in one of the listed states. An
// empty Statuses means the status class the run was fetched under, so a run
// that left its class between fetch and evaluation is not acted on.
// Status and Conclusion are used by KindStatusAndConclusion only and ignore
// the scope.
type Rule struct {
	Name       string             `yaml:"name,omitempty"`
	Kind       Kind               `yaml:"kind"`
	Action     Action             `yaml:"action,omitempty"`
	Statuses   []github.RunStatus `yaml:"statuses,omitempty"`
	Actors     []string           `yaml:"actors,omitempty"`
	Substring  string             `yaml:"substring,omitempty"`
	Prefix     string             `yaml:"prefix,omitempty"`
	Status     github.RunStatus   `yaml:"status,omitempty"`
	Conclusion github.Conclusion  `yaml:"conclusion,omitempty"`
}

// StatusIn cancels every run in one of the given states.
func StatusIn(statuses ...github.RunStatus) Rule {
	return Rule{Kind: KindStatusIn, Statuses: statuses}
}

// ActorNotIn cancels runs triggered by anyone outside the exempt set.
func ActorNotIn(exempt ...string) Rule {
	return Rule{Kind: KindActorNotIn, Actors: exempt}
}

// MessageContains cancels runs whose head commit message contains marker.
func MessageContains(marker string) Rule {
	return Rule{Kind: KindMessageContains, Substring: marker}
}

// SHAPrefixMismatch cancels runs for any commit except the pinned one.
func SHAPrefixMismatch(prefix string) Rule {
	return Rule{Kind: KindSHAPrefixMismatch, Prefix: prefix}
}

// RerunOnFailure re-runs failed jobs of runs that are still in progress but
// already carry a failure conclusion.
func RerunOnFailure() Rule {
	return Rule{
		Kind:       KindStatusAndConclusion,
		Action:     ActionRerun,
		Status:     github.StatusInProgress,
		Conclusion: github.ConclusionFailure,
	}
}

// EffectiveAction returns the configured action or the kind's default.
func (r Rule) EffectiveAction() Action {
	if r.Action != "" {
		return r.Action
	}
	if r.Kind == KindStatusAndConclusion {
		return ActionRerun
	}
	return ActionCancel
}

// Matches reports whether run, fetched under statusClass, satisfies the rule.
func (r Rule) Matches(run github.WorkflowRun, statusClass github.RunStatus) bool {
	if r.Kind == KindStatusAndConclusion {
		status, conclusion := r.Status, r.Conclusion
		if status == "" {
			status = github.StatusInProgress
		}
		if conclusion == "" {
			conclusion = github.ConclusionFailure
		}
		return run.Status == status && run.Conclusion == conclusion
	}

	if !r.inScope(run, statusClass) {
		return false
	}

	switch r.Kind {
	case KindStatusIn:
		return true
	case KindActorNotIn:
		return !slices.Contains(r.Actors, run.ActorLogin())
	case KindMessageContains:
		return r.Substring != "" && strings.Contains(run.CommitMessage(), r.Substring)
	case KindSHAPrefixMismatch:
		return r.Prefix != "" && !strings.HasPrefix(run.HeadSHA, r.Prefix)
	}
	return false
}

func (r Rule) inScope(run github.WorkflowRun, statusClass github.RunStatus) bool {
	if len(r.Statuses) == 0 {
		return run.Status == statusClass
	}
	return slices.Contains(r.Statuses, run.Status)
}

// Validate checks that the rule carries the parameters its kind needs.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindStatusIn:
		if len(r.Statuses) == 0 {
			return fmt.Errorf("%w: %s needs at least one status", ErrInvalidRule, r.Kind)
		}
	case KindActorNotIn:
		if len(r.Actors) == 0 {
			return fmt.Errorf("%w: %s needs at least one exempt actor", ErrInvalidRule, r.Kind)
		}
	case KindMessageContains:
		if r.Substring == "" {
			return fmt.Errorf("%w: %s needs a substring", ErrInvalidRule, r.Kind)
		}
	case KindSHAPrefixMismatch:
		if r.Prefix == "" {
			return fmt.Errorf("%w: %s needs a commit prefix", ErrInvalidRule, r.Kind)
		}
	case KindStatusAndConclusion:
	case "":
		return fmt.Errorf("%w: missing kind", ErrInvalidRule)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}

	switch r.Action {
	case "", ActionCancel, ActionRerun:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, r.Action)
	}
	return nil
}

// String describes the rule for logs.
func (r Rule) String() string {
	if r.Name != "" {
		return r.Name
	}
	switch r.Kind {
	case KindStatusIn:
		return fmt.Sprintf("%s %v", r.Kind, r.Statuses)
	case KindActorNotIn:
		return fmt.Sprintf("%s [%s]", r.Kind, strings.Join(r.Actors, ","))
	case KindMessageContains:
		return fmt.Sprintf("%s %q", r.Kind, r.Substring)
	case KindSHAPrefixMismatch:
		return fmt.Sprintf("%s %s", r.Kind, r.Prefix)
	}
	return string(r.Kind)
}
