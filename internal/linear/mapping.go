package linear

import (
	"errors"
	"strings"

	"github.com/deskhub/deskhub/internal/types"
)

// ErrNoStateMatch is returned when no workflow state is acceptable for a
// local status. Callers must log and skip the state update rather than guess.
var ErrNoStateMatch = errors.New("no matching workflow state")

// Remote priority values. The tracker uses a five-value numeric priority.
const (
	RemotePriorityNone   = 0
	RemotePriorityUrgent = 1
	RemotePriorityHigh   = 2
	RemotePriorityNormal = 3
	RemotePriorityLow    = 4
)

// PriorityToRemote maps a local priority to the tracker's numeric priority.
// The mapping is total: every local priority has a remote value.
func PriorityToRemote(p types.Priority) int {
	switch p {
	case types.PriorityUrgent:
		return RemotePriorityUrgent
	case types.PriorityHigh:
		return RemotePriorityHigh
	case types.PriorityLow:
		return RemotePriorityLow
	default:
		return RemotePriorityNormal
	}
}

// PriorityToLocal maps the tracker's numeric priority back to a local
// priority. The tracker's "unset" value maps to the local default (medium).
func PriorityToLocal(remote int) types.Priority {
	switch remote {
	case RemotePriorityUrgent:
		return types.PriorityUrgent
	case RemotePriorityHigh:
		return types.PriorityHigh
	case RemotePriorityLow:
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

// statusRule describes the acceptable workflow states for one local status:
// an ordered list of acceptable state types and a list of name substrings.
type statusRule struct {
	types    []string
	keywords []string
}

// statusRules is evaluated per local status against a team's live state list.
// Remote state vocabularies vary per team, so matching is ranked rather than
// a fixed table: type+keyword beats keyword beats type.
var statusRules = map[types.Status]statusRule{
	types.StatusOpen: {
		types:    []string{StateTypeUnstarted, StateTypeStarted},
		keywords: []string{"todo", "backlog", "triage", "open", "new"},
	},
	types.StatusInProgress: {
		types:    []string{StateTypeStarted},
		keywords: []string{"progress", "doing", "started", "development", "review"},
	},
	types.StatusResolved: {
		types:    []string{StateTypeCompleted},
		keywords: []string{"done", "complete", "resolved", "finished", "merged"},
	},
	types.StatusClosed: {
		types:    []string{StateTypeCanceled, StateTypeCompleted},
		keywords: []string{"closed", "canceled", "cancelled", "done", "archived"},
	},
}

// FindStateForStatus resolves a local status against a team's live state
// list. Three ranked passes:
//
//  1. a state whose type is acceptable and whose name contains an acceptable
//     keyword (strongest match),
//  2. any state whose name contains an acceptable keyword, ignoring type,
//  3. the first state whose type is acceptable, ignoring name.
//
// When no pass matches, ErrNoStateMatch is returned; there is no silent
// default here. Use ResolveState when a team-default fallback is wanted.
func FindStateForStatus(status types.Status, states []State) (*State, error) {
	rule, ok := statusRules[status]
	if !ok {
		return nil, ErrNoStateMatch
	}

	typeOK := make(map[string]bool, len(rule.types))
	for _, t := range rule.types {
		typeOK[t] = true
	}

	nameMatches := func(s *State) bool {
		name := strings.ToLower(s.Name)
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
		return false
	}

	// Pass 1: type and name both acceptable.
	for i := range states {
		if typeOK[states[i].Type] && nameMatches(&states[i]) {
			return &states[i], nil
		}
	}

	// Pass 2: name only.
	for i := range states {
		if nameMatches(&states[i]) {
			return &states[i], nil
		}
	}

	// Pass 3: first state of an acceptable type, in rule type order.
	for _, t := range rule.types {
		for i := range states {
			if states[i].Type == t {
				return &states[i], nil
			}
		}
	}

	return nil, ErrNoStateMatch
}

// DefaultState returns the team's designated default state: the first
// unstarted-type state, or the first state overall. Returns nil for an empty
// state list.
func DefaultState(states []State) *State {
	for i := range states {
		if states[i].Type == StateTypeUnstarted {
			return &states[i]
		}
	}
	if len(states) > 0 {
		return &states[0]
	}
	return nil
}

// ResolveState resolves a local status to a workflow state, falling back to
// the team default so issue creation never blocks on an unmapped status. It
// fails only when the team has no states at all.
func ResolveState(status types.Status, states []State) (*State, error) {
	if state, err := FindStateForStatus(status, states); err == nil {
		return state, nil
	}
	if state := DefaultState(states); state != nil {
		return state, nil
	}
	return nil, ErrNoStateMatch
}

// StateNameToStatus maps a remote workflow state name to a local status using
// a fixed keyword table. The second return is false when no keyword matched
// and the caller received the open fallback; callers should log that case so
// newly introduced remote states are visible rather than silently masked.
func StateNameToStatus(name string) (types.Status, bool) {
	n := strings.ToLower(name)

	for _, kw := range []string{"done", "complete", "resolved", "finished", "merged"} {
		if strings.Contains(n, kw) {
			return types.StatusResolved, true
		}
	}
	for _, kw := range []string{"cancel", "closed", "archived"} {
		if strings.Contains(n, kw) {
			return types.StatusClosed, true
		}
	}
	for _, kw := range []string{"progress", "doing", "started", "review", "development"} {
		if strings.Contains(n, kw) {
			return types.StatusInProgress, true
		}
	}
	for _, kw := range []string{"todo", "backlog", "triage", "open", "new"} {
		if strings.Contains(n, kw) {
			return types.StatusOpen, true
		}
	}

	return types.StatusOpen, false
}
