package dispatch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"git.home.luguber.info/inful/cdispd/internal/component"
)

type fakeInvoker struct {
	calls []Request
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, req Request) error {
	f.calls = append(f.calls, req)
	return f.err
}

type fakeMarkers struct {
	marked  []string
	cleared []string
	err     error
}

func (f *fakeMarkers) Mark(name string) error {
	f.marked = append(f.marked, name)
	return f.err
}

func (f *fakeMarkers) Clear(name string) error {
	f.cleared = append(f.cleared, name)
	return f.err
}

func defaultOpts() Options {
	return Options{Resolve: component.DefaultResolveOptions()}
}

func TestRunCycleNothingToDo(t *testing.T) {
	inv := &fakeInvoker{}
	mk := &fakeMarkers{}
	d := NewDriver(inv, mk, nil, defaultOpts())

	p := mkProfile(t, 4, map[string]comp{"spma": {active: "true", dispatch: "true"}}, nil)
	res := d.RunCycle(context.Background(), p, p, false)

	if res.Outcome != OutcomeSuccess || res.Invoked {
		t.Fatalf("empty diff with healthy state must skip invocation: %+v", res)
	}
	if res.Reason != CycleReasonNothingToDo {
		t.Fatalf("reason = %s", res.Reason)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("invoker called: %v", inv.calls)
	}
}

func TestRunCycleDispatches(t *testing.T) {
	inv := &fakeInvoker{}
	mk := &fakeMarkers{}
	d := NewDriver(inv, mk, nil, defaultOpts())

	old := mkProfile(t, 1, map[string]comp{"grub": {active: "false", dispatch: "true"}}, nil)
	new := mkProfile(t, 2, map[string]comp{
		"grub": {active: "false", dispatch: "true"},
		"spma": {active: "true", dispatch: "true"},
	}, nil)

	res := d.RunCycle(context.Background(), old, new, false)
	if res.Outcome != OutcomeSuccess || !res.Invoked {
		t.Fatalf("result = %+v", res)
	}
	if len(inv.calls) != 1 || inv.calls[0].All {
		t.Fatalf("calls = %+v", inv.calls)
	}
	if !reflect.DeepEqual(inv.calls[0].Names, []string{"spma"}) {
		t.Fatalf("names = %v", inv.calls[0].Names)
	}
	if inv.calls[0].ProfileID != 2 {
		t.Fatalf("profile id = %d", inv.calls[0].ProfileID)
	}
	if !reflect.DeepEqual(mk.marked, []string{"spma"}) {
		t.Fatalf("marked = %v", mk.marked)
	}
	if !reflect.DeepEqual(mk.cleared, []string{"grub"}) {
		t.Fatalf("cleared = %v", mk.cleared)
	}
}

func TestRunCycleForcedFullRetry(t *testing.T) {
	inv := &fakeInvoker{}
	d := NewDriver(inv, &fakeMarkers{}, nil, defaultOpts())

	// Identical profiles but the last run failed: the driver must request a
	// full run of all active components rather than accept the stalemate.
	p := mkProfile(t, 3, map[string]comp{"spma": {active: "true", dispatch: "true"}}, nil)
	res := d.RunCycle(context.Background(), p, p, true)

	if !res.ForcedAll || res.Reason != CycleReasonForcedFull {
		t.Fatalf("result = %+v", res)
	}
	if len(inv.calls) != 1 || !inv.calls[0].All {
		t.Fatalf("calls = %+v", inv.calls)
	}
}

func TestRunCycleInvocationFailure(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("exit status 1")}
	d := NewDriver(inv, &fakeMarkers{}, nil, defaultOpts())

	old := mkProfile(t, 1, nil, nil)
	new := mkProfile(t, 2, map[string]comp{"spma": {active: "true", dispatch: "true"}}, nil)

	res := d.RunCycle(context.Background(), old, new, false)
	if res.Outcome != OutcomeFailure || res.Err == nil {
		t.Fatalf("failure not surfaced: %+v", res)
	}
}

func TestRunCycleDryRun(t *testing.T) {
	inv := &fakeInvoker{}
	mk := &fakeMarkers{}
	opts := defaultOpts()
	opts.DryRun = true
	d := NewDriver(inv, mk, nil, opts)

	old := mkProfile(t, 1, nil, nil)
	new := mkProfile(t, 2, map[string]comp{"spma": {active: "true", dispatch: "true"}}, nil)

	res := d.RunCycle(context.Background(), old, new, false)
	if res.Outcome != OutcomeSuccess || res.Invoked {
		t.Fatalf("dry run must succeed without invoking: %+v", res)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("invoker called during dry run")
	}
	if len(mk.marked) != 0 || len(mk.cleared) != 0 {
		t.Fatalf("markers mutated during dry run: %+v", mk)
	}
}

func TestRunCycleMarkerFailureDoesNotChangeOutcome(t *testing.T) {
	inv := &fakeInvoker{}
	mk := &fakeMarkers{err: errors.New("read-only fs")}
	d := NewDriver(inv, mk, nil, defaultOpts())

	old := mkProfile(t, 1, nil, nil)
	new := mkProfile(t, 2, map[string]comp{"spma": {active: "true", dispatch: "true"}}, nil)

	res := d.RunCycle(context.Background(), old, new, false)
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("marker IO failure must not fail the cycle: %+v", res)
	}
}

func TestRunCycleMissingComponentsPathOnNewProfile(t *testing.T) {
	inv := &fakeInvoker{}
	mk := &fakeMarkers{}
	d := NewDriver(inv, mk, nil, defaultOpts())

	old := mkProfile(t, 1, map[string]comp{"spma": {active: "true", dispatch: "true"}}, nil)
	// New profile lost the whole components subtree: nothing dispatches,
	// but the pivot components are treated as removed and their markers go.
	new := mkProfileWithoutComponents(t, 2)

	res := d.RunCycle(context.Background(), old, new, false)
	if res.Outcome != OutcomeSuccess || res.Invoked {
		t.Fatalf("result = %+v", res)
	}
	if !reflect.DeepEqual(mk.cleared, []string{"spma"}) {
		t.Fatalf("cleared = %v", mk.cleared)
	}
}
