package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cdispd/internal/component"
	"git.home.luguber.info/inful/cdispd/internal/logfields"
	"git.home.luguber.info/inful/cdispd/internal/metrics"
	"git.home.luguber.info/inful/cdispd/internal/profile"
	"git.home.luguber.info/inful/cdispd/internal/util/sets"
)

// Outcome is the result of one cycle's invocation decision.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Cycle reason values, recorded in history and status output.
const (
	CycleReasonNothingToDo = "nothing_to_do"
	CycleReasonDispatch    = "dispatch"
	CycleReasonForcedFull  = "forced_full_retry"
	CycleReasonDryRun      = "dry_run"
)

// Options configures the driver's dispatch decisions. All fields are opaque
// pass-through configuration; none of them add decision logic beyond what the
// diff precedence defines.
type Options struct {
	Resolve component.ResolveOptions
	// DryRun suppresses the invocation and all marker mutation. The cycle
	// still reports success so the pivot advances normally.
	DryRun bool
}

// Markers is the narrow marker-store interface the driver needs.
type Markers interface {
	Mark(name string) error
	Clear(name string) error
}

// CycleResult summarizes one comparison cycle.
type CycleResult struct {
	CycleID   string
	ProfileID uint64
	PivotID   uint64
	Plan      Plan
	Outcome   Outcome
	Reason    string
	Invoked   bool
	ForcedAll bool
	Duration  time.Duration
	Err       error
	StartedAt time.Time
}

// Driver orchestrates one comparison cycle: build the plan, invoke the
// external program, maintain the state markers. It holds no cycle state of
// its own; everything long-lived belongs to the pivot machine.
type Driver struct {
	invoker Invoker
	markers Markers
	rec     metrics.Recorder
	opts    Options
}

// NewDriver builds a driver. markers and rec may be nil; a nil recorder is
// replaced with the noop implementation.
func NewDriver(invoker Invoker, markers Markers, rec metrics.Recorder, opts Options) *Driver {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Driver{invoker: invoker, markers: markers, rec: rec, opts: opts}
}

// RunCycle performs one comparison cycle between the pivot profile (nil when
// no profile was ever accepted) and the new profile. Invocation failure is
// reported in the result, never as a panic or a returned error: the caller
// feeds the outcome to the pivot machine.
func (d *Driver) RunCycle(ctx context.Context, oldProf, newProf *profile.Profile, lastRunFailed bool) CycleResult {
	start := time.Now()
	res := CycleResult{
		CycleID:   uuid.NewString(),
		ProfileID: newProf.ID(),
		StartedAt: start,
	}
	if oldProf != nil {
		res.PivotID = oldProf.ID()
	}

	oldReg := d.extractOld(oldProf)
	newReg, err := component.Extract(newProf)
	if err != nil {
		// Non-fatal: an empty component set still clears markers for every
		// pivot component via the removal rule.
		slog.Error("new profile has no components path, treating as empty set",
			logfields.ProfileID(newProf.ID()), logfields.Error(err))
	}

	res.Plan = Diff(oldReg, newReg, oldProf, newProf, d.opts.Resolve)
	d.rec.AddDanglingSubscriptions(len(res.Plan.Dangling))

	switch {
	case res.Plan.Dispatch.Len() == 0 && !lastRunFailed:
		res.Outcome = OutcomeSuccess
		res.Reason = CycleReasonNothingToDo
		slog.Info("no component needs dispatching",
			logfields.CycleID(res.CycleID), logfields.ProfileID(res.ProfileID))
	case res.Plan.Dispatch.Len() == 0 && lastRunFailed:
		// The previous run failed and the diff found nothing: retry every
		// active component rather than silently accepting the new profile.
		res.ForcedAll = true
		res.Reason = CycleReasonForcedFull
		res.Outcome = d.invoke(ctx, Request{All: true, ProfileID: newProf.ID()}, &res)
	default:
		res.Reason = CycleReasonDispatch
		res.Outcome = d.invoke(ctx, Request{Names: sets.Sorted(res.Plan.Dispatch), ProfileID: newProf.ID()}, &res)
	}

	d.applyMarkers(res.Plan)

	res.Duration = time.Since(start)
	d.rec.ObserveCycleDuration(res.Duration)
	d.rec.SetLastDispatchSize(res.Plan.Dispatch.Len())
	if res.Invoked {
		d.rec.AddDispatched(res.Plan.Dispatch.Len())
	}
	if res.Outcome == OutcomeSuccess && !res.Invoked {
		d.rec.IncCycleOutcome(metrics.OutcomeNoop)
	} else {
		d.rec.IncCycleOutcome(string(res.Outcome))
	}

	slog.Info("cycle finished",
		logfields.CycleID(res.CycleID),
		logfields.ProfileID(res.ProfileID),
		logfields.PivotID(res.PivotID),
		logfields.Outcome(string(res.Outcome)),
		logfields.Reason(res.Reason),
		slog.Int("dispatched", res.Plan.Dispatch.Len()),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res
}

// extractOld builds the pivot registry. A pivot without a components path is
// ordinary: the node had no components before.
func (d *Driver) extractOld(oldProf *profile.Profile) component.Registry {
	if oldProf == nil {
		return component.Registry{}
	}
	reg, err := component.Extract(oldProf)
	if err != nil {
		slog.Info("pivot profile has no components path",
			logfields.ProfileID(oldProf.ID()))
	}
	return reg
}

func (d *Driver) invoke(ctx context.Context, req Request, res *CycleResult) Outcome {
	if d.opts.DryRun {
		res.Reason = CycleReasonDryRun
		slog.Info("dry run, skipping invocation",
			logfields.CycleID(res.CycleID), slog.Int("components", len(req.Names)), slog.Bool("all", req.All))
		return OutcomeSuccess
	}
	res.Invoked = true
	if err := d.invoker.Invoke(ctx, req); err != nil {
		res.Err = err
		slog.Error("invocation failed", logfields.CycleID(res.CycleID), logfields.Error(err))
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// applyMarkers touches the marker of every dispatched component and removes
// the marker of every cleared one. Marker IO failures are warnings; they
// never influence dispatch decisions. Dry runs leave markers untouched.
func (d *Driver) applyMarkers(plan Plan) {
	if d.markers == nil || d.opts.DryRun {
		return
	}
	for _, name := range sets.Sorted(plan.Dispatch) {
		if err := d.markers.Mark(name); err != nil {
			d.rec.IncMarkerFailure()
			slog.Warn("cannot create state marker", logfields.Component(name), logfields.Error(err))
		}
	}
	for _, name := range sets.Sorted(plan.Clear) {
		if err := d.markers.Clear(name); err != nil {
			d.rec.IncMarkerFailure()
			slog.Warn("cannot remove state marker", logfields.Component(name), logfields.Error(err))
		}
	}
}
