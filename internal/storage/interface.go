package storage

import (
	"context"
	"time"

	"github.com/driftscope/driftscope/pkg/types"
)

// RetentionPolicy bounds how many records a scope retains and for how long.
// Zero values disable the corresponding bound.
type RetentionPolicy struct {
	MaxCount int
	MaxAge   time.Duration
}

// SnapshotStore persists immutable snapshots per scope. Writes for a given
// scope are serialized; reads may proceed concurrently against committed
// state. Ordering is by (timestamp, sequence) descending.
type SnapshotStore interface {
	// Save persists a snapshot, assigning its id and per-scope sequence when
	// unset, and returns the snapshot id.
	Save(ctx context.Context, snapshot *types.Snapshot) (string, error)
	// Latest returns the newest snapshot for the scope.
	Latest(ctx context.Context, scope types.Scope) (*types.Snapshot, error)
	// Get returns a snapshot by id.
	Get(ctx context.Context, id string) (*types.Snapshot, error)
	// List returns snapshot metadata for the scope, newest first. A non-nil
	// before restricts the listing to snapshots strictly older than it.
	List(ctx context.Context, scope types.Scope, limit int, before *time.Time) ([]SnapshotInfo, error)
	// Prune removes snapshots exceeding the retention policy and returns the
	// removed ids. Snapshots whose id appears in keep are never removed.
	Prune(ctx context.Context, scope types.Scope, policy RetentionPolicy, keep []string) ([]string, error)
}

// ReportStore persists immutable drift reports with the same scoping and
// ordering contract as SnapshotStore.
type ReportStore interface {
	Save(ctx context.Context, report *types.DriftReport) (string, error)
	Latest(ctx context.Context, scope types.Scope) (*types.DriftReport, error)
	Get(ctx context.Context, id string) (*types.DriftReport, error)
	List(ctx context.Context, scope types.Scope, limit int, before *time.Time) ([]ReportInfo, error)
	Prune(ctx context.Context, scope types.Scope, policy RetentionPolicy) ([]string, error)
	// ReferencedSnapshotIDs returns the baseline and candidate snapshot ids
	// of every retained report for the scope. Retention uses this to avoid
	// deleting a snapshot a retained report still points at.
	ReferencedSnapshotIDs(ctx context.Context, scope types.Scope) ([]string, error)
}

// SnapshotInfo provides metadata about a stored snapshot.
type SnapshotInfo struct {
	ID            string      `json:"id"`
	Scope         types.Scope `json:"scope"`
	Timestamp     time.Time   `json:"timestamp"`
	Sequence      uint64      `json:"sequence"`
	ResourceCount int         `json:"resource_count"`
	FileSize      int64       `json:"file_size,omitempty"`
}

// ReportInfo provides metadata about a stored drift report.
type ReportInfo struct {
	ID                  string      `json:"id"`
	Scope               types.Scope `json:"scope"`
	Timestamp           time.Time   `json:"timestamp"`
	BaselineSnapshotID  string      `json:"baseline_snapshot_id"`
	CandidateSnapshotID string      `json:"candidate_snapshot_id"`
	HasDrift            bool        `json:"has_drift"`
	ChangeCount         int         `json:"change_count"`
	FileSize            int64       `json:"file_size,omitempty"`
}

// Config holds storage configuration.
type Config struct {
	BaseDir string `json:"base_dir"`
}
