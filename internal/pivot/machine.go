package pivot

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/cdispd/internal/logfields"
	"git.home.luguber.info/inful/cdispd/internal/profile"
)

// Decision reason values.
const (
	ReasonNoPivot       = "no_pivot"
	ReasonSameProfileID = "same_profile_id"
	ReasonChecksum      = "checksum_changed"
	ReasonLastRunFailed = "last_run_failed"
	ReasonUnchanged     = "unchanged"
)

// Decision says whether a newly observed profile warrants a comparison cycle.
type Decision struct {
	Run    bool
	Reason string
}

// Machine tracks the accepted pivot profile and the failure flag across
// cycles. Transitions happen only at cycle boundaries: Evaluate before a
// cycle, CommitSuccess or CommitFailure after. The store may be nil for
// purely in-memory operation (tests, the once command against a scratch dir).
type Machine struct {
	mu            sync.Mutex
	accepted      *profile.Profile
	lastRunFailed bool
	store         *Store
}

// NewMachine builds a machine, restoring persisted state when a store is
// given.
func NewMachine(store *Store) (*Machine, error) {
	m := &Machine{store: store}
	if store != nil {
		accepted, failed, err := store.Load()
		if err != nil {
			return nil, err
		}
		m.accepted = accepted
		m.lastRunFailed = failed
		if accepted != nil {
			slog.Info("restored pivot state",
				logfields.PivotID(accepted.ID()), slog.Bool("last_run_failed", failed))
		}
	}
	return m, nil
}

// Accepted returns the pivot profile, nil when none was ever accepted.
func (m *Machine) Accepted() *profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepted
}

// LastRunFailed reports whether the previous dispatch run failed.
func (m *Machine) LastRunFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRunFailed
}

// Evaluate decides whether the new profile warrants a comparison cycle.
// A profile with the accepted id is never acted on. With a differing id, a
// cycle runs when the root checksum changed or the last run failed; an
// identical checksum after a clean run is a no-op and the pivot stays put.
func (m *Machine) Evaluate(new *profile.Profile) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.accepted == nil:
		return Decision{Run: true, Reason: ReasonNoPivot}
	case new.ID() == m.accepted.ID():
		return Decision{Run: false, Reason: ReasonSameProfileID}
	case new.RootChecksum() != m.accepted.RootChecksum():
		return Decision{Run: true, Reason: ReasonChecksum}
	case m.lastRunFailed:
		return Decision{Run: true, Reason: ReasonLastRunFailed}
	default:
		return Decision{Run: false, Reason: ReasonUnchanged}
	}
}

// CommitSuccess advances the pivot to the new profile after a successful
// cycle and clears the failure flag.
func (m *Machine) CommitSuccess(new *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = new
	m.lastRunFailed = false
	return m.save()
}

// CommitFailure records a failed cycle. The pivot does not advance, so the
// next profile is diffed against the same stale baseline and failed
// components stay eligible for re-dispatch.
func (m *Machine) CommitFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRunFailed = true
	return m.save()
}

func (m *Machine) save() error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(m.accepted, m.lastRunFailed)
}
