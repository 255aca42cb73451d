package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftscope/driftscope/internal/analyzer"
	"github.com/driftscope/driftscope/internal/collector"
	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/internal/logger"
	"github.com/driftscope/driftscope/internal/storage"
	"github.com/driftscope/driftscope/pkg/types"
)

// State names a scope's position in the collection cycle state machine.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateAnalyzing  State = "analyzing"
	StateFailed     State = "failed"
)

// Config tunes the orchestrator.
type Config struct {
	// Interval between scheduled collection cycles per scope.
	Interval time.Duration
	// CycleTimeout is the maximum duration of one cycle.
	CycleTimeout time.Duration
	// RetentionInterval is how often retention pruning runs.
	RetentionInterval time.Duration
	// Workers bounds how many cycles run concurrently across scopes.
	Workers int
	// QueueSize bounds the pending task queue.
	QueueSize int
	// Retry bounds collector fetch retries within a cycle.
	Retry collector.RetryPolicy
	// SnapshotRetention and ReportRetention bound stored history per scope.
	SnapshotRetention storage.RetentionPolicy
	ReportRetention   storage.RetentionPolicy
}

// DefaultConfig returns the orchestrator defaults: three-hour cycles,
// ten-minute cycle budget, hourly retention, and the retention bounds the
// original service shipped with.
func DefaultConfig() Config {
	return Config{
		Interval:          3 * time.Hour,
		CycleTimeout:      10 * time.Minute,
		RetentionInterval: time.Hour,
		Workers:           4,
		QueueSize:         64,
		Retry:             collector.DefaultRetryPolicy(),
		SnapshotRetention: storage.RetentionPolicy{MaxCount: 100, MaxAge: 30 * 24 * time.Hour},
		ReportRetention:   storage.RetentionPolicy{MaxCount: 100, MaxAge: 30 * 24 * time.Hour},
	}
}

// CycleResult records the outcome of one collection cycle.
type CycleResult struct {
	Scope      types.Scope `json:"scope"`
	SnapshotID string      `json:"snapshot_id,omitempty"`
	ReportID   string      `json:"report_id,omitempty"`
	HasDrift   bool        `json:"has_drift"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Err        error       `json:"-"`
}

// Cycle is a handle on an in-flight or completed cycle. Concurrent triggers
// for the same scope share one handle.
type Cycle struct {
	done   chan struct{}
	mu     sync.Mutex
	result *CycleResult
}

// Done is closed when the cycle finishes.
func (c *Cycle) Done() <-chan struct{} {
	return c.done
}

// Result returns the cycle outcome, or nil while the cycle is in flight.
func (c *Cycle) Result() *CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Wait blocks until the cycle completes or the context is cancelled.
func (c *Cycle) Wait(ctx context.Context) (*CycleResult, error) {
	select {
	case <-c.done:
		return c.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cycle) finish(result *CycleResult) {
	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
	close(c.done)
}

// scopeState is the per-scope state machine record. All fields are guarded
// by the orchestrator mutex.
type scopeState struct {
	scope      types.Scope
	state      State
	inflight   *Cycle
	lastResult *CycleResult
}

type task struct {
	scope types.Scope
	cycle *Cycle
}

// Orchestrator runs periodic collection and analysis cycles per scope. It
// guarantees at most one in-flight cycle per scope; scheduled ticks and
// explicit triggers while a cycle runs attach to the in-flight cycle.
type Orchestrator struct {
	cfg       Config
	collector collector.Collector
	analyzer  *analyzer.Analyzer
	snapshots storage.SnapshotStore
	reports   storage.ReportStore
	log       logger.Logger
	metrics   *Metrics

	mu     sync.Mutex
	scopes map[string]*scopeState
	tasks  chan task
}

// New creates an orchestrator. The collector is wrapped with the configured
// retry policy.
func New(cfg Config, col collector.Collector, an *analyzer.Analyzer,
	snapshots storage.SnapshotStore, reports storage.ReportStore,
	log logger.Logger, metrics *Metrics) *Orchestrator {

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultConfig().CycleTimeout
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = DefaultConfig().RetentionInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Orchestrator{
		cfg:       cfg,
		collector: collector.WithRetry(col, cfg.Retry, log),
		analyzer:  an,
		snapshots: snapshots,
		reports:   reports,
		log:       log,
		metrics:   metrics,
		scopes:    make(map[string]*scopeState),
		tasks:     make(chan task, cfg.QueueSize),
	}
}

// Register adds a scope to the scheduled tick set. Registering an already
// known scope is a no-op.
func (o *Orchestrator) Register(scope types.Scope) error {
	if err := scope.Validate(); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, "invalid scope", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.scopes[scope.Key()]; !ok {
		o.scopes[scope.Key()] = &scopeState{scope: scope, state: StateIdle}
	}
	return nil
}

// Scopes returns the registered scopes in a stable order.
func (o *Orchestrator) Scopes() []types.Scope {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.scopes))
	for k := range o.scopes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	scopes := make([]types.Scope, 0, len(keys))
	for _, k := range keys {
		scopes = append(scopes, o.scopes[k].scope)
	}
	return scopes
}

// Status returns the scope's state-machine position and last cycle result.
func (o *Orchestrator) Status(scope types.Scope) (State, *CycleResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.scopes[scope.Key()]
	if !ok {
		return StateIdle, nil
	}
	return st.state, st.lastResult
}

// Trigger starts a collection cycle for the scope, or attaches to the cycle
// already in flight. The scope is registered as a side effect.
func (o *Orchestrator) Trigger(scope types.Scope) (*Cycle, error) {
	if err := scope.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid scope", err)
	}

	o.mu.Lock()
	st, ok := o.scopes[scope.Key()]
	if !ok {
		st = &scopeState{scope: scope, state: StateIdle}
		o.scopes[scope.Key()] = st
	}
	if st.inflight != nil {
		cycle := st.inflight
		o.mu.Unlock()
		return cycle, nil
	}
	cycle := &Cycle{done: make(chan struct{})}
	st.inflight = cycle
	st.state = StateCollecting
	o.mu.Unlock()

	select {
	case o.tasks <- task{scope: scope, cycle: cycle}:
		return cycle, nil
	default:
		o.mu.Lock()
		st.inflight = nil
		st.state = StateIdle
		o.mu.Unlock()
		return nil, apperrors.New(apperrors.KindStorageError, "cycle queue is full")
	}
}

// Run drains the task queue with the worker pool and drives the scheduled
// tick and retention loops until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < o.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case t := <-o.tasks:
					o.runCycle(gctx, t)
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.tickAll()
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.RetentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.runRetention(gctx)
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	return g.Wait()
}

// tickAll triggers a cycle for every registered scope. Scopes with a cycle
// already in flight attach to it and are not re-queued.
func (o *Orchestrator) tickAll() {
	for _, scope := range o.Scopes() {
		if _, err := o.Trigger(scope); err != nil {
			o.log.WithField("scope", scope.Key()).Error("failed to schedule cycle", err)
		}
	}
}

// runCycle executes one collect-persist-analyze cycle under the configured
// cycle timeout.
func (o *Orchestrator) runCycle(ctx context.Context, t task) {
	cycleCtx, cancel := context.WithTimeout(ctx, o.cfg.CycleTimeout)
	defer cancel()

	o.metrics.cyclesStarted.Inc()
	started := time.Now()
	result := &CycleResult{Scope: t.scope, StartedAt: started.UTC()}

	err := o.executeCycle(cycleCtx, t.scope, result)
	if err != nil && cycleCtx.Err() == context.DeadlineExceeded {
		err = apperrors.Wrap(apperrors.KindCycleTimeout, "cycle exceeded maximum duration", err)
	}
	result.Err = err
	result.FinishedAt = time.Now().UTC()
	o.metrics.cycleDuration.Observe(time.Since(started).Seconds())

	o.mu.Lock()
	st := o.scopes[t.scope.Key()]
	if st != nil {
		st.inflight = nil
		st.lastResult = result
		if err != nil {
			st.state = StateFailed
		} else {
			st.state = StateIdle
		}
	}
	o.mu.Unlock()

	if err != nil {
		o.metrics.cyclesFailed.Inc()
		o.log.WithField("scope", t.scope.Key()).Error("collection cycle failed", err)
	} else {
		o.metrics.cyclesSucceeded.Inc()
	}

	t.cycle.finish(result)
}

// executeCycle performs the pipeline steps: fetch, persist snapshot, load
// the preceding snapshot, diff, persist report. The first snapshot of a
// scope completes the cycle without a report.
func (o *Orchestrator) executeCycle(ctx context.Context, scope types.Scope, result *CycleResult) error {
	config, err := o.collector.Fetch(ctx, scope)
	if err != nil {
		return err
	}

	snapshot := &types.Snapshot{Scope: scope, Configuration: config}
	snapshotID, err := o.snapshots.Save(ctx, snapshot)
	if err != nil {
		return err
	}
	result.SnapshotID = snapshotID

	o.setState(scope, StateAnalyzing)

	baseline, err := o.precedingSnapshot(ctx, scope, snapshot)
	if err != nil {
		return err
	}
	if baseline == nil {
		o.log.WithField("scope", scope.Key()).Info("first snapshot for scope, skipping analysis")
		return nil
	}

	report, err := o.analyzer.Diff(baseline, snapshot)
	if err != nil {
		return err
	}
	reportID, err := o.reports.Save(ctx, report)
	if err != nil {
		return err
	}
	result.ReportID = reportID
	result.HasDrift = report.HasDrift
	o.metrics.changesDetected.Add(float64(report.ChangeCount()))

	o.log.WithFields(map[string]interface{}{
		"scope":     scope.Key(),
		"snapshot":  snapshotID,
		"report":    reportID,
		"has_drift": report.HasDrift,
		"changes":   report.ChangeCount(),
	}).Info("collection cycle completed")
	return nil
}

// precedingSnapshot returns the snapshot immediately before current in the
// scope's (timestamp, sequence) order, or nil if current is the first.
func (o *Orchestrator) precedingSnapshot(ctx context.Context, scope types.Scope, current *types.Snapshot) (*types.Snapshot, error) {
	infos, err := o.snapshots.List(ctx, scope, 0, nil)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Sequence < current.Sequence {
			return o.snapshots.Get(ctx, info.ID)
		}
	}
	return nil, nil
}

func (o *Orchestrator) setState(scope types.Scope, state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.scopes[scope.Key()]; ok {
		st.state = state
	}
}

// runRetention prunes reports first, then snapshots, protecting every
// snapshot a retained report still references.
func (o *Orchestrator) runRetention(ctx context.Context) {
	for _, scope := range o.Scopes() {
		removedReports, err := o.reports.Prune(ctx, scope, o.cfg.ReportRetention)
		if err != nil {
			o.log.WithField("scope", scope.Key()).Error("report retention failed", err)
			continue
		}
		o.metrics.reportsPruned.Add(float64(len(removedReports)))

		referenced, err := o.reports.ReferencedSnapshotIDs(ctx, scope)
		if err != nil {
			o.log.WithField("scope", scope.Key()).Error("failed to resolve referenced snapshots", err)
			continue
		}
		removedSnapshots, err := o.snapshots.Prune(ctx, scope, o.cfg.SnapshotRetention, referenced)
		if err != nil {
			o.log.WithField("scope", scope.Key()).Error("snapshot retention failed", err)
			continue
		}
		o.metrics.snapshotsPruned.Add(float64(len(removedSnapshots)))

		if len(removedReports) > 0 || len(removedSnapshots) > 0 {
			o.log.WithFields(map[string]interface{}{
				"scope":     scope.Key(),
				"reports":   len(removedReports),
				"snapshots": len(removedSnapshots),
			}).Info("retention pruning completed")
		}
	}
}

// RunRetentionOnce runs one retention pass outside the periodic loop.
func (o *Orchestrator) RunRetentionOnce(ctx context.Context) {
	o.runRetention(ctx)
}
