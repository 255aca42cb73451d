package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftscope/driftscope/internal/analyzer"
	"github.com/driftscope/driftscope/internal/collector"
	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/internal/logger"
	"github.com/driftscope/driftscope/internal/storage"
	"github.com/driftscope/driftscope/pkg/types"
)

var testScope = types.Scope{SubscriptionID: "sub-1", ResourceGroup: "rg-1"}

// scriptedCollector returns queued configurations in order. A non-nil gate
// blocks each fetch until the gate closes.
type scriptedCollector struct {
	mu      sync.Mutex
	calls   int
	configs []*types.Configuration
	err     error
	gate    chan struct{}
}

func (c *scriptedCollector) Name() string { return "scripted" }

func (c *scriptedCollector) Fetch(ctx context.Context, scope types.Scope) (*types.Configuration, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	gate := c.gate
	fetchErr := c.err
	configs := c.configs
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	idx := call - 1
	if idx >= len(configs) {
		idx = len(configs) - 1
	}
	return configs[idx].Clone(), nil
}

func (c *scriptedCollector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func configWithTier(tier string) *types.Configuration {
	return &types.Configuration{
		Resources: types.ResourceSet{
			"storage_accounts": {
				"acct1": types.TreeFromValue(map[string]interface{}{"tier": tier}),
			},
		},
	}
}

func newTestOrchestrator(t *testing.T, col collector.Collector) (*Orchestrator, *storage.Local) {
	t.Helper()
	local, err := storage.NewLocal(storage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	cfg := Config{
		Interval:          time.Hour,
		CycleTimeout:      10 * time.Second,
		RetentionInterval: time.Hour,
		Workers:           2,
		QueueSize:         8,
		Retry:             collector.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		SnapshotRetention: storage.RetentionPolicy{MaxCount: 100},
		ReportRetention:   storage.RetentionPolicy{MaxCount: 100},
	}
	orch := New(cfg, col, analyzer.New(analyzer.Options{}),
		local.Snapshots, local.Reports, logger.NewNop(),
		NewMetrics(prometheus.NewRegistry()))
	return orch, local
}

func startOrchestrator(t *testing.T, orch *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestOrchestrator_FirstCycleSkipsAnalysis(t *testing.T) {
	col := &scriptedCollector{configs: []*types.Configuration{configWithTier("Standard")}}
	orch, local := newTestOrchestrator(t, col)
	startOrchestrator(t, orch)

	cycle, err := orch.Trigger(testScope)
	require.NoError(t, err)

	result, err := cycle.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.NotEmpty(t, result.SnapshotID)
	assert.Empty(t, result.ReportID)
	assert.False(t, result.HasDrift)

	snap, err := local.Snapshots.Latest(context.Background(), testScope)
	require.NoError(t, err)
	assert.Equal(t, result.SnapshotID, snap.ID)

	_, err = local.Reports.Latest(context.Background(), testScope)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOrchestrator_SecondCycleProducesReport(t *testing.T) {
	col := &scriptedCollector{configs: []*types.Configuration{
		configWithTier("Standard"),
		configWithTier("Premium"),
	}}
	orch, local := newTestOrchestrator(t, col)
	startOrchestrator(t, orch)

	for i := 0; i < 2; i++ {
		cycle, err := orch.Trigger(testScope)
		require.NoError(t, err)
		result, err := cycle.Wait(context.Background())
		require.NoError(t, err)
		require.NoError(t, result.Err)
	}

	report, err := local.Reports.Latest(context.Background(), testScope)
	require.NoError(t, err)
	assert.True(t, report.HasDrift)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, types.ChangeModified, report.Changes[0].ChangeType)
	assert.Equal(t, "tier", report.Changes[0].PropertyPath)
	assert.Equal(t, "Standard", report.Changes[0].OldValue)
	assert.Equal(t, "Premium", report.Changes[0].NewValue)

	// Report references the two snapshots in order.
	infos, err := local.Snapshots.List(context.Background(), testScope, 0, nil)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, infos[1].ID, report.BaselineSnapshotID)
	assert.Equal(t, infos[0].ID, report.CandidateSnapshotID)

	state, last := orch.Status(testScope)
	assert.Equal(t, StateIdle, state)
	require.NotNil(t, last)
	assert.True(t, last.HasDrift)
}

func TestOrchestrator_ConcurrentTriggersShareOneCycle(t *testing.T) {
	gate := make(chan struct{})
	col := &scriptedCollector{
		configs: []*types.Configuration{configWithTier("Standard")},
		gate:    gate,
	}
	orch, local := newTestOrchestrator(t, col)
	startOrchestrator(t, orch)

	first, err := orch.Trigger(testScope)
	require.NoError(t, err)

	var wg sync.WaitGroup
	cycles := make([]*Cycle, 10)
	for i := range cycles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cycle, err := orch.Trigger(testScope)
			if err == nil {
				cycles[i] = cycle
			}
		}(i)
	}
	wg.Wait()

	// Every trigger attached to the in-flight cycle.
	for _, cycle := range cycles {
		assert.Same(t, first, cycle)
	}

	close(gate)
	result, err := first.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.Err)

	assert.Equal(t, 1, col.callCount())
	infos, err := local.Snapshots.List(context.Background(), testScope, 0, nil)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestOrchestrator_FailedCycleSetsStateAndRecovers(t *testing.T) {
	col := &scriptedCollector{err: apperrors.New(apperrors.KindCollectorUnavailable, "endpoint down")}
	orch, local := newTestOrchestrator(t, col)
	startOrchestrator(t, orch)

	cycle, err := orch.Trigger(testScope)
	require.NoError(t, err)
	result, err := cycle.Wait(context.Background())
	require.NoError(t, err)
	require.Error(t, result.Err)
	assert.Empty(t, result.SnapshotID)

	state, last := orch.Status(testScope)
	assert.Equal(t, StateFailed, state)
	require.NotNil(t, last)
	require.Error(t, last.Err)

	// A failed cycle leaves nothing behind and does not wedge the scope.
	_, err = local.Snapshots.Latest(context.Background(), testScope)
	assert.True(t, apperrors.IsNotFound(err))

	col.mu.Lock()
	col.err = nil
	col.configs = []*types.Configuration{configWithTier("Standard")}
	col.mu.Unlock()

	cycle, err = orch.Trigger(testScope)
	require.NoError(t, err)
	result, err = cycle.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.NotEmpty(t, result.SnapshotID)

	state, _ = orch.Status(testScope)
	assert.Equal(t, StateIdle, state)
}

func TestOrchestrator_RegisterAndScopes(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &scriptedCollector{})

	require.NoError(t, orch.Register(testScope))
	require.NoError(t, orch.Register(testScope))
	require.NoError(t, orch.Register(types.Scope{SubscriptionID: "sub-0", ResourceGroup: "rg-9"}))

	scopes := orch.Scopes()
	require.Len(t, scopes, 2)
	assert.Equal(t, "sub-0/rg-9", scopes[0].Key())
	assert.Equal(t, "sub-1/rg-1", scopes[1].Key())

	assert.Error(t, orch.Register(types.Scope{}))
}

func TestOrchestrator_TriggerValidatesScope(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &scriptedCollector{})

	_, err := orch.Trigger(types.Scope{SubscriptionID: "sub-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestOrchestrator_RetentionProtectsReferencedSnapshots(t *testing.T) {
	local, err := storage.NewLocal(storage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		snap := &types.Snapshot{Scope: testScope, Configuration: configWithTier("Standard")}
		_, err := local.Snapshots.Save(ctx, snap)
		require.NoError(t, err)
		ids = append(ids, snap.ID)
	}

	// A retained report still references the two oldest snapshots.
	report := &types.DriftReport{
		Scope:               testScope,
		BaselineSnapshotID:  ids[0],
		CandidateSnapshotID: ids[1],
		Summary:             types.Summary{Severity: types.SeverityLow, Categories: map[types.Bucket]int{}},
	}
	_, err = local.Reports.Save(ctx, report)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.SnapshotRetention = storage.RetentionPolicy{MaxCount: 2}
	cfg.ReportRetention = storage.RetentionPolicy{MaxCount: 100}
	orch := New(cfg, &scriptedCollector{}, analyzer.New(analyzer.Options{}),
		local.Snapshots, local.Reports, logger.NewNop(),
		NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, orch.Register(testScope))

	orch.RunRetentionOnce(ctx)

	infos, err := local.Snapshots.List(ctx, testScope, 0, nil)
	require.NoError(t, err)

	remaining := make(map[string]bool, len(infos))
	for _, info := range infos {
		remaining[info.ID] = true
	}
	// The newest two survive the count bound, the referenced pair survives
	// the keep set, and the unreferenced middle snapshot is gone.
	assert.True(t, remaining[ids[0]])
	assert.True(t, remaining[ids[1]])
	assert.False(t, remaining[ids[2]])
	assert.True(t, remaining[ids[3]])
	assert.True(t, remaining[ids[4]])
}

func TestOrchestrator_QueueFullFailsFast(t *testing.T) {
	col := &scriptedCollector{configs: []*types.Configuration{configWithTier("Standard")}}
	local, err := storage.NewLocal(storage.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.QueueSize = 1
	orch := New(cfg, col, analyzer.New(analyzer.Options{}),
		local.Snapshots, local.Reports, logger.NewNop(),
		NewMetrics(prometheus.NewRegistry()))

	// Without workers running, the first trigger occupies the queue slot.
	_, err = orch.Trigger(testScope)
	require.NoError(t, err)

	_, err = orch.Trigger(types.Scope{SubscriptionID: "sub-2", ResourceGroup: "rg-2"})
	require.Error(t, err)

	// The rejected scope is left idle and can be triggered again later.
	state, _ := orch.Status(types.Scope{SubscriptionID: "sub-2", ResourceGroup: "rg-2"})
	assert.Equal(t, StateIdle, state)
}
