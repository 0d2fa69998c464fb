// Package dispatch contains the snapshot comparison engine and the driver
// that turns its plan into one invocation of the external reconfiguration
// program.
package dispatch

import (
	"log/slog"

	"git.home.luguber.info/inful/cdispd/internal/component"
	"git.home.luguber.info/inful/cdispd/internal/logfields"
	"git.home.luguber.info/inful/cdispd/internal/profile"
	"git.home.luguber.info/inful/cdispd/internal/util/sets"
)

// Reason values record why a component is (or is not) part of a plan.
// Constants to prevent string drift across engine, driver, history and tests.
const (
	ReasonNewActive          = "new_active"          // appeared in the new profile, declared active
	ReasonNewInactive        = "new_inactive"        // appeared, but inactive or misconfigured
	ReasonActivated          = "activated"           // active flag flipped false -> true
	ReasonDeactivated        = "deactivated"         // active flag flipped true -> false
	ReasonRemoved            = "removed"             // disappeared from the new profile
	ReasonInactive           = "inactive"            // present, inactive, unchanged
	ReasonSubscriptionChange = "subscription_change" // a subscribed path's checksum changed
	ReasonUnchanged          = "unchanged"           // active, no subscribed path changed
	ReasonNotDispatchable    = "not_dispatchable"    // would run, but dispatch flag forbids it
)

// Plan is the outcome of one profile comparison: which components to invoke,
// which state markers to clear, and why each component ended up where it did.
// Built fresh per cycle and never persisted.
type Plan struct {
	// Dispatch holds the components to invoke this cycle.
	Dispatch sets.Set[string]
	// Clear holds the components whose state marker must be removed:
	// removed, deactivated and idle-inactive components.
	Clear sets.Set[string]
	// Reasons maps every component seen in either profile to its decision.
	Reasons map[string]string
	// Dangling lists subscribed paths that do not exist in the new profile,
	// one entry per offending (component, path) pair.
	Dangling []string
}

// Diff compares the component registries of the pivot and the new profile and
// produces the dispatch plan. oldProf may be nil when no pivot exists yet; in
// that case oldReg must be empty and every component is treated as new.
//
// Per-component precedence, first match wins:
//  1. absent from old: dispatch if active.
//  2. absent from new: never dispatch, clear the marker.
//  3. activated: dispatch without consulting subscriptions.
//  4. deactivated: clear the marker, skip subscriptions.
//  5. inactive and unchanged: clear the marker.
//  6. active and unchanged: dispatch if any subscribed path changed.
//
// A status flip is only recognized when both active flags are defined;
// ambiguous input never triggers a flip on its own.
func Diff(oldReg, newReg component.Registry, oldProf, newProf *profile.Profile, opts component.ResolveOptions) Plan {
	plan := Plan{
		Dispatch: sets.New[string](),
		Clear:    sets.New[string](),
		Reasons:  make(map[string]string, len(oldReg)+len(newReg)),
	}

	for name, cfg := range newReg {
		if _, existed := oldReg[name]; existed {
			continue
		}
		if cfg.IsActive() {
			plan.add(name, cfg, ReasonNewActive)
		} else {
			plan.Reasons[name] = ReasonNewInactive
		}
	}

	for name := range oldReg {
		if _, present := newReg[name]; present {
			continue
		}
		// Removal alone never triggers a run; only the marker goes away.
		plan.Clear.Add(name)
		plan.Reasons[name] = ReasonRemoved
	}

	for name, newCfg := range newReg {
		oldCfg, existed := oldReg[name]
		if !existed {
			continue
		}

		oldActive, oldKnown := oldCfg.Active.Get()
		newActive, newKnown := newCfg.Active.Get()
		if oldKnown && newKnown && oldActive != newActive {
			if newActive {
				plan.add(name, newCfg, ReasonActivated)
			} else {
				plan.Clear.Add(name)
				plan.Reasons[name] = ReasonDeactivated
			}
			continue
		}
		if !oldKnown || !newKnown {
			slog.Warn("component active status ambiguous, treating as unchanged",
				logfields.Component(name))
		}

		if !newCfg.IsActive() {
			plan.Clear.Add(name)
			plan.Reasons[name] = ReasonInactive
			continue
		}

		if plan.subscriptionChanged(name, newCfg, oldProf, newProf, opts) {
			plan.add(name, newCfg, ReasonSubscriptionChange)
		} else {
			plan.Reasons[name] = ReasonUnchanged
		}
	}

	return plan
}

// add admits name to the dispatch set if its dispatch flag allows it.
func (p *Plan) add(name string, cfg component.Config, reason string) {
	if !cfg.IsDispatchable() {
		slog.Warn("component eligible but not dispatchable",
			logfields.Component(name), logfields.Reason(reason))
		p.Reasons[name] = ReasonNotDispatchable
		return
	}
	p.Dispatch.Add(name)
	p.Reasons[name] = reason
}

// subscriptionChanged runs the CPE change test for one component: the first
// subscribed path that changed between the pivot and the new profile decides.
// Paths missing from the new profile are a misconfiguration, not a trigger.
func (p *Plan) subscriptionChanged(name string, cfg component.Config, oldProf, newProf *profile.Profile, opts component.ResolveOptions) bool {
	for _, pth := range component.Subscriptions(cfg, opts) {
		newSum, ok := newProf.Checksum(pth)
		if !ok {
			slog.Error("component subscribed to a non-existent path",
				logfields.Component(name), logfields.Path(pth))
			p.Dangling = append(p.Dangling, pth)
			continue
		}
		if oldProf == nil {
			return true
		}
		oldSum, ok := oldProf.Checksum(pth)
		if !ok {
			// Newly appeared path counts as changed.
			return true
		}
		if oldSum != newSum {
			return true
		}
	}
	return false
}
