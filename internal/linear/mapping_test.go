package linear

import (
	"errors"
	"testing"

	"github.com/deskhub/deskhub/internal/types"
)

func TestPriorityRoundTrip(t *testing.T) {
	// Local -> remote -> local must be the identity for every local priority.
	for _, p := range []types.Priority{
		types.PriorityLow, types.PriorityMedium, types.PriorityHigh, types.PriorityUrgent,
	} {
		if got := PriorityToLocal(PriorityToRemote(p)); got != p {
			t.Errorf("round trip %q = %q", p, got)
		}
	}
}

func TestPriorityToLocalUnset(t *testing.T) {
	if got := PriorityToLocal(RemotePriorityNone); got != types.PriorityMedium {
		t.Errorf("unset priority = %q, want medium", got)
	}
	if got := PriorityToLocal(99); got != types.PriorityMedium {
		t.Errorf("out-of-range priority = %q, want medium", got)
	}
}

func TestFindStateForStatusTypeAndName(t *testing.T) {
	states := []State{
		{ID: "t1", Name: "Todo", Type: StateTypeUnstarted},
		{ID: "t2", Name: "Done", Type: StateTypeCompleted},
	}

	got, err := FindStateForStatus(types.StatusOpen, states)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("open = %s, want t1", got.ID)
	}

	got, err = FindStateForStatus(types.StatusResolved, states)
	if err != nil {
		t.Fatalf("resolved: %v", err)
	}
	if got.ID != "t2" {
		t.Errorf("resolved = %s, want t2", got.ID)
	}
}

func TestFindStateForStatusNameOnly(t *testing.T) {
	// "Code Review" has an unexpected type; the name-only pass should still
	// find it for in_progress.
	states := []State{
		{ID: "s1", Name: "Icebox", Type: StateTypeUnstarted},
		{ID: "s2", Name: "Code Review", Type: StateTypeCompleted},
	}

	got, err := FindStateForStatus(types.StatusInProgress, states)
	if err != nil {
		t.Fatalf("in_progress: %v", err)
	}
	if got.ID != "s2" {
		t.Errorf("in_progress = %s, want s2", got.ID)
	}
}

func TestFindStateForStatusTypeOnly(t *testing.T) {
	// Names match nothing; fall back to the first state of an acceptable type.
	states := []State{
		{ID: "s1", Name: "Pile", Type: StateTypeUnstarted},
		{ID: "s2", Name: "Churning", Type: StateTypeStarted},
		{ID: "s3", Name: "Shipped It", Type: StateTypeCompleted},
	}

	got, err := FindStateForStatus(types.StatusResolved, states)
	if err != nil {
		t.Fatalf("resolved: %v", err)
	}
	if got.ID != "s3" {
		t.Errorf("resolved = %s, want s3", got.ID)
	}

	// closed prefers canceled over completed in type order.
	got, err = FindStateForStatus(types.StatusClosed, append(states, State{ID: "s4", Name: "Nope", Type: StateTypeCanceled}))
	if err != nil {
		t.Fatalf("closed: %v", err)
	}
	if got.ID != "s4" {
		t.Errorf("closed = %s, want s4", got.ID)
	}
}

func TestFindStateForStatusNoMatch(t *testing.T) {
	states := []State{
		{ID: "s1", Name: "Weird", Type: "triage"},
	}

	_, err := FindStateForStatus(types.StatusResolved, states)
	if !errors.Is(err, ErrNoStateMatch) {
		t.Fatalf("err = %v, want ErrNoStateMatch", err)
	}
}

func TestDefaultState(t *testing.T) {
	states := []State{
		{ID: "s1", Name: "Doing", Type: StateTypeStarted},
		{ID: "s2", Name: "Todo", Type: StateTypeUnstarted},
	}
	if got := DefaultState(states); got == nil || got.ID != "s2" {
		t.Errorf("default = %v, want s2", got)
	}

	// No unstarted state: first overall.
	if got := DefaultState(states[:1]); got == nil || got.ID != "s1" {
		t.Errorf("default = %v, want s1", got)
	}

	if got := DefaultState(nil); got != nil {
		t.Errorf("default of empty list = %v, want nil", got)
	}
}

func TestResolveStateFallsBackToDefault(t *testing.T) {
	states := []State{
		{ID: "s1", Name: "Weird", Type: "triage"},
		{ID: "s2", Name: "Strange", Type: StateTypeUnstarted},
	}

	got, err := ResolveState(types.StatusResolved, states)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != "s2" {
		t.Errorf("resolve = %s, want default s2", got.ID)
	}

	if _, err := ResolveState(types.StatusResolved, nil); !errors.Is(err, ErrNoStateMatch) {
		t.Errorf("empty state list err = %v, want ErrNoStateMatch", err)
	}
}

func TestStateNameToStatus(t *testing.T) {
	tests := []struct {
		name    string
		want    types.Status
		matched bool
	}{
		{"Done", types.StatusResolved, true},
		{"Completed", types.StatusResolved, true},
		{"Resolved", types.StatusResolved, true},
		{"Canceled", types.StatusClosed, true},
		{"Cancelled", types.StatusClosed, true},
		{"In Progress", types.StatusInProgress, true},
		{"In Review", types.StatusInProgress, true},
		{"Backlog", types.StatusOpen, true},
		{"Todo", types.StatusOpen, true},
		{"Quantum Flux", types.StatusOpen, false},
	}
	for _, tt := range tests {
		got, matched := StateNameToStatus(tt.name)
		if got != tt.want || matched != tt.matched {
			t.Errorf("StateNameToStatus(%q) = %q, %v; want %q, %v", tt.name, got, matched, tt.want, tt.matched)
		}
	}
}
