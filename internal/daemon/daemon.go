// Package daemon runs the dispatch loop: poll the profile source, evaluate
// the pivot gate, run a comparison cycle, commit the outcome.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/cdispd/internal/config"
	"git.home.luguber.info/inful/cdispd/internal/dispatch"
	"git.home.luguber.info/inful/cdispd/internal/events"
	"git.home.luguber.info/inful/cdispd/internal/history"
	"git.home.luguber.info/inful/cdispd/internal/logfields"
	"git.home.luguber.info/inful/cdispd/internal/pivot"
	"git.home.luguber.info/inful/cdispd/internal/profile"
	"git.home.luguber.info/inful/cdispd/internal/retry"
	"git.home.luguber.info/inful/cdispd/internal/statestore"
	"git.home.luguber.info/inful/cdispd/internal/util/sets"
)

// CycleRunner is the narrow driver interface the daemon needs.
type CycleRunner interface {
	RunCycle(ctx context.Context, oldProf, newProf *profile.Profile, lastRunFailed bool) dispatch.CycleResult
}

// Deps bundles the collaborators wired up by the CLI.
type Deps struct {
	Source  profile.Source
	Machine *pivot.Machine
	Runner  CycleRunner
	Markers *statestore.Store  // optional, status output only
	History *history.Store     // optional
	Events  *events.Publisher  // optional
}

// Daemon owns the poll loop. There is exactly one thread of control for
// comparison cycles: the poll mutex serializes gocron ticks, watcher nudges
// and the initial poll, so no concurrent invocations are ever issued.
type Daemon struct {
	cfg  *config.Config
	deps Deps

	backoff       retry.Policy
	fetchFailures int
	nextFetch     time.Time

	pollMu    sync.Mutex
	nudgeChan chan struct{}
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu         sync.RWMutex
	lastResult *dispatch.CycleResult
	startTime  time.Time
}

// New builds a daemon from configuration and collaborators.
func New(cfg *config.Config, deps Deps) *Daemon {
	return &Daemon{
		cfg:       cfg,
		deps:      deps,
		backoff:   cfg.FetchRetryPolicy(),
		nudgeChan: make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
		startTime: time.Now(),
	}
}

// Run starts the loop and blocks until the context is canceled or Stop is
// called. Cancellation takes effect at a cycle boundary: a running cycle
// always finishes before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	interval := d.cfg.PollIntervalDuration()
	slog.Info("Starting dispatch daemon",
		slog.String("cache_dir", d.cfg.CacheDir),
		slog.Duration("poll_interval", interval),
		slog.Bool("dry_run", d.cfg.DryRun))

	scheduler, err := NewScheduler()
	if err != nil {
		return err
	}
	if err := scheduler.SchedulePoll(interval, func() { d.poll(ctx) }); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer func() {
		if err := scheduler.Stop(ctx); err != nil {
			slog.Warn("scheduler shutdown error", logfields.Error(err))
		}
	}()

	if watcher, err := NewCacheWatcher(d.cfg.CacheDir, d.Nudge); err != nil {
		slog.Warn("cache watcher unavailable, relying on polling only", logfields.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		slog.Warn("cache watcher failed to start", logfields.Error(err))
	} else {
		defer watcher.Stop()
	}

	// First poll immediately rather than waiting out the first interval.
	d.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatch loop stopped by context cancellation")
			// Wait for an in-flight cycle before reporting shutdown.
			d.pollMu.Lock()
			d.pollMu.Unlock() //nolint:staticcheck // barrier, not a critical section
			return nil
		case <-d.stopChan:
			slog.Info("Dispatch loop stopped by stop signal")
			return nil
		case <-d.nudgeChan:
			d.poll(ctx)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

// Nudge asks the loop to poll as soon as possible. Non-blocking; nudges
// arriving during a poll collapse into one.
func (d *Daemon) Nudge() {
	select {
	case d.nudgeChan <- struct{}{}:
	default:
	}
}

// RunOnce performs a single poll and returns the cycle result, nil when the
// gate decided nothing needs doing. Used by the once command.
func (d *Daemon) RunOnce(ctx context.Context) (*dispatch.CycleResult, error) {
	return d.pollErr(ctx)
}

// poll is the loop body: fetch, gate, cycle, commit.
func (d *Daemon) poll(ctx context.Context) {
	if _, err := d.pollErr(ctx); err != nil {
		slog.Warn("poll failed", logfields.Error(err))
	}
}

func (d *Daemon) pollErr(ctx context.Context) (*dispatch.CycleResult, error) {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.nextFetch.IsZero() && time.Now().Before(d.nextFetch) {
		slog.Debug("backing off profile source",
			slog.Time("next_attempt", d.nextFetch))
		return nil, nil
	}

	id, err := d.deps.Source.CurrentID(ctx)
	if err != nil {
		d.fetchFailed(err)
		return nil, err
	}

	accepted := d.deps.Machine.Accepted()
	if accepted != nil && id == accepted.ID() && !d.deps.Machine.LastRunFailed() {
		d.fetchRecovered()
		slog.Debug("profile unchanged", logfields.ProfileID(id))
		return nil, nil
	}

	prof, err := d.deps.Source.Fetch(ctx)
	if err != nil {
		d.fetchFailed(err)
		return nil, err
	}
	d.fetchRecovered()

	dec := d.deps.Machine.Evaluate(prof)
	if !dec.Run {
		slog.Info("profile does not warrant a cycle",
			logfields.ProfileID(prof.ID()), logfields.Reason(dec.Reason))
		return nil, nil
	}
	slog.Info("starting comparison cycle",
		logfields.ProfileID(prof.ID()), logfields.Reason(dec.Reason))

	res := d.deps.Runner.RunCycle(ctx, accepted, prof, d.deps.Machine.LastRunFailed())
	d.commit(ctx, prof, &res)
	return &res, nil
}

// commit applies the cycle outcome to the pivot machine and records the
// cycle in history and on the event bus.
func (d *Daemon) commit(ctx context.Context, prof *profile.Profile, res *dispatch.CycleResult) {
	var err error
	if res.Outcome == dispatch.OutcomeSuccess {
		err = d.deps.Machine.CommitSuccess(prof)
	} else {
		err = d.deps.Machine.CommitFailure()
	}
	if err != nil {
		slog.Warn("cannot persist pivot state", logfields.Error(err))
	}

	d.mu.Lock()
	d.lastResult = res
	d.mu.Unlock()

	if d.deps.History != nil {
		rec := history.Record{
			CycleID:    res.CycleID,
			ProfileID:  res.ProfileID,
			PivotID:    res.PivotID,
			Outcome:    string(res.Outcome),
			Reason:     res.Reason,
			ForcedAll:  res.ForcedAll,
			Dispatched: sets.Sorted(res.Plan.Dispatch),
			Cleared:    sets.Sorted(res.Plan.Clear),
			DurationMS: float64(res.Duration.Milliseconds()),
			StartedAt:  res.StartedAt,
		}
		if err := d.deps.History.Append(ctx, rec); err != nil {
			slog.Warn("cannot record cycle history", logfields.Error(err))
		}
	}

	ev := events.CycleEvent{
		CycleID:    res.CycleID,
		Node:       d.cfg.Node,
		ProfileID:  res.ProfileID,
		PivotID:    res.PivotID,
		Outcome:    string(res.Outcome),
		Reason:     res.Reason,
		ForcedAll:  res.ForcedAll,
		Dispatched: sets.Sorted(res.Plan.Dispatch),
		StartedAt:  res.StartedAt,
		DurationMS: float64(res.Duration.Milliseconds()),
	}
	if err := d.deps.Events.Publish(ctx, ev); err != nil {
		slog.Warn("cannot publish cycle event", logfields.Error(err))
	}
}

func (d *Daemon) fetchFailed(err error) {
	d.fetchFailures++
	delay := d.backoff.Delay(d.fetchFailures)
	d.nextFetch = time.Now().Add(delay)
	slog.Warn("profile source unavailable",
		slog.Int("consecutive_failures", d.fetchFailures),
		slog.Duration("backoff", delay),
		logfields.Error(err))
}

func (d *Daemon) fetchRecovered() {
	if d.fetchFailures > 0 {
		slog.Info("profile source recovered",
			slog.Int("failures", d.fetchFailures))
	}
	d.fetchFailures = 0
	d.nextFetch = time.Time{}
}

// LastResult returns the most recent cycle result, nil before the first
// cycle.
func (d *Daemon) LastResult() *dispatch.CycleResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastResult
}

// Uptime returns time since the daemon was constructed.
func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}
