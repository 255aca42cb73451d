package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/pkg/types"
)

const (
	snapshotsDirName = "snapshots"
	reportsDirName   = "drift-reports"
)

// Local bundles the filesystem-backed snapshot and report stores under one
// base directory.
type Local struct {
	Snapshots *LocalSnapshotStore
	Reports   *LocalReportStore
}

// NewLocal creates filesystem stores rooted at cfg.BaseDir.
func NewLocal(cfg Config) (*Local, error) {
	if cfg.BaseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageError, "failed to resolve home directory", err)
		}
		cfg.BaseDir = filepath.Join(homeDir, ".driftscope")
	}

	snapshotsDir := filepath.Join(cfg.BaseDir, snapshotsDirName)
	reportsDir := filepath.Join(cfg.BaseDir, reportsDirName)
	for _, dir := range []string{cfg.BaseDir, snapshotsDir, reportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageError, fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	return &Local{
		Snapshots: &LocalSnapshotStore{baseDir: snapshotsDir, locks: newScopeLocks()},
		Reports:   &LocalReportStore{baseDir: reportsDir, locks: newScopeLocks()},
	}, nil
}

// LocalSnapshotStore implements SnapshotStore on the local filesystem. Each
// scope gets its own directory; snapshot files are named by zero-padded
// sequence so the per-scope counter survives restarts.
type LocalSnapshotStore struct {
	baseDir string
	locks   *scopeLocks
}

func (s *LocalSnapshotStore) scopeDir(scope types.Scope) string {
	return filepath.Join(s.baseDir, scope.SubscriptionID, scope.ResourceGroup)
}

// Save persists a snapshot, assigning id, timestamp and sequence when unset.
func (s *LocalSnapshotStore) Save(ctx context.Context, snapshot *types.Snapshot) (string, error) {
	if err := snapshot.Scope.Validate(); err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, "invalid snapshot scope", err)
	}
	if snapshot.Configuration == nil {
		return "", apperrors.New(apperrors.KindValidation, "snapshot configuration cannot be nil")
	}

	lock := s.locks.get(snapshot.Scope.Key())
	lock.Lock()
	defer lock.Unlock()

	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}
	if snapshot.Sequence == 0 {
		maxSeq, err := s.maxSequence(snapshot.Scope)
		if err != nil {
			return "", err
		}
		snapshot.Sequence = maxSeq + 1
	}
	if err := snapshot.Validate(); err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, "invalid snapshot", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageError, "failed to encode snapshot", err)
	}

	filename := filepath.Join(s.scopeDir(snapshot.Scope), snapshotFilename(snapshot.Sequence, snapshot.ID))
	if err := writeFileAtomic(filename, data, 0o644); err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageError, "failed to write snapshot", err)
	}
	return snapshot.ID, nil
}

// Latest returns the newest snapshot for the scope by (timestamp, sequence).
func (s *LocalSnapshotStore) Latest(ctx context.Context, scope types.Scope) (*types.Snapshot, error) {
	snapshots, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, apperrors.Newf(apperrors.KindNotFound, "no snapshots for scope %s", scope)
	}
	return snapshots[0], nil
}

// Get returns a snapshot by id, searching across scopes.
func (s *LocalSnapshotStore) Get(ctx context.Context, id string) (*types.Snapshot, error) {
	path, err := findByID(s.baseDir, id)
	if err != nil {
		return nil, err
	}
	var snapshot types.Snapshot
	if err := loadJSON(path, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// List returns snapshot metadata for the scope, newest first.
func (s *LocalSnapshotStore) List(ctx context.Context, scope types.Scope, limit int, before *time.Time) ([]SnapshotInfo, error) {
	snapshots, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}

	infos := make([]SnapshotInfo, 0, len(snapshots))
	for _, snap := range snapshots {
		if before != nil && !snap.Timestamp.Before(*before) {
			continue
		}
		infos = append(infos, SnapshotInfo{
			ID:            snap.ID,
			Scope:         snap.Scope,
			Timestamp:     snap.Timestamp,
			Sequence:      snap.Sequence,
			ResourceCount: snap.ResourceCount(),
		})
		if limit > 0 && len(infos) == limit {
			break
		}
	}
	return infos, nil
}

// Prune removes snapshots beyond the retention policy, oldest first, never
// touching snapshots listed in keep.
func (s *LocalSnapshotStore) Prune(ctx context.Context, scope types.Scope, policy RetentionPolicy, keep []string) ([]string, error) {
	lock := s.locks.get(scope.Key())
	lock.Lock()
	defer lock.Unlock()

	snapshots, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	var removed []string
	cutoff := time.Now().Add(-policy.MaxAge)
	for i, snap := range snapshots {
		overCount := policy.MaxCount > 0 && i >= policy.MaxCount
		overAge := policy.MaxAge > 0 && snap.Timestamp.Before(cutoff)
		if !overCount && !overAge {
			continue
		}
		if _, protected := kept[snap.ID]; protected {
			continue
		}
		path := filepath.Join(s.scopeDir(scope), snapshotFilename(snap.Sequence, snap.ID))
		if err := os.Remove(path); err != nil {
			return removed, apperrors.Wrap(apperrors.KindStorageError, "failed to remove snapshot", err)
		}
		removed = append(removed, snap.ID)
	}
	return removed, nil
}

// loadScope loads all snapshots of a scope sorted newest first.
func (s *LocalSnapshotStore) loadScope(scope types.Scope) ([]*types.Snapshot, error) {
	entries, err := os.ReadDir(s.scopeDir(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.KindStorageError, "failed to read snapshot directory", err)
	}

	var snapshots []*types.Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var snap types.Snapshot
		if err := loadJSON(filepath.Join(s.scopeDir(scope), entry.Name()), &snap); err != nil {
			continue
		}
		snapshots = append(snapshots, &snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[j].Before(snapshots[i])
	})
	return snapshots, nil
}

// maxSequence returns the highest sequence recorded for a scope, parsed from
// filenames so it never depends on file content.
func (s *LocalSnapshotStore) maxSequence(scope types.Scope) (uint64, error) {
	entries, err := os.ReadDir(s.scopeDir(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperrors.Wrap(apperrors.KindStorageError, "failed to read snapshot directory", err)
	}

	var max uint64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		sep := strings.Index(name, "-")
		if sep < 0 {
			continue
		}
		seq, err := strconv.ParseUint(name[:sep], 10, 64)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

func snapshotFilename(sequence uint64, id string) string {
	return fmt.Sprintf("%020d-%s.json", sequence, id)
}

// LocalReportStore implements ReportStore on the local filesystem.
type LocalReportStore struct {
	baseDir string
	locks   *scopeLocks
}

func (s *LocalReportStore) scopeDir(scope types.Scope) string {
	return filepath.Join(s.baseDir, scope.SubscriptionID, scope.ResourceGroup)
}

// Save persists a drift report, assigning id and timestamp when unset.
func (s *LocalReportStore) Save(ctx context.Context, report *types.DriftReport) (string, error) {
	if err := report.Scope.Validate(); err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, "invalid report scope", err)
	}

	lock := s.locks.get(report.Scope.Key())
	lock.Lock()
	defer lock.Unlock()

	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}
	if err := report.Validate(); err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, "invalid drift report", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageError, "failed to encode drift report", err)
	}

	filename := filepath.Join(s.scopeDir(report.Scope), reportFilename(report.Timestamp, report.ID))
	if err := writeFileAtomic(filename, data, 0o644); err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageError, "failed to write drift report", err)
	}
	return report.ID, nil
}

// Latest returns the newest drift report for the scope.
func (s *LocalReportStore) Latest(ctx context.Context, scope types.Scope) (*types.DriftReport, error) {
	reports, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, apperrors.Newf(apperrors.KindNotFound, "no drift reports for scope %s", scope)
	}
	return reports[0], nil
}

// Get returns a drift report by id, searching across scopes.
func (s *LocalReportStore) Get(ctx context.Context, id string) (*types.DriftReport, error) {
	path, err := findByID(s.baseDir, id)
	if err != nil {
		return nil, err
	}
	var report types.DriftReport
	if err := loadJSON(path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns report metadata for the scope, newest first.
func (s *LocalReportStore) List(ctx context.Context, scope types.Scope, limit int, before *time.Time) ([]ReportInfo, error) {
	reports, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}

	infos := make([]ReportInfo, 0, len(reports))
	for _, report := range reports {
		if before != nil && !report.Timestamp.Before(*before) {
			continue
		}
		infos = append(infos, ReportInfo{
			ID:                  report.ID,
			Scope:               report.Scope,
			Timestamp:           report.Timestamp,
			BaselineSnapshotID:  report.BaselineSnapshotID,
			CandidateSnapshotID: report.CandidateSnapshotID,
			HasDrift:            report.HasDrift,
			ChangeCount:         report.ChangeCount(),
		})
		if limit > 0 && len(infos) == limit {
			break
		}
	}
	return infos, nil
}

// Prune removes reports beyond the retention policy, oldest first.
func (s *LocalReportStore) Prune(ctx context.Context, scope types.Scope, policy RetentionPolicy) ([]string, error) {
	lock := s.locks.get(scope.Key())
	lock.Lock()
	defer lock.Unlock()

	reports, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}

	var removed []string
	cutoff := time.Now().Add(-policy.MaxAge)
	for i, report := range reports {
		overCount := policy.MaxCount > 0 && i >= policy.MaxCount
		overAge := policy.MaxAge > 0 && report.Timestamp.Before(cutoff)
		if !overCount && !overAge {
			continue
		}
		path := filepath.Join(s.scopeDir(scope), reportFilename(report.Timestamp, report.ID))
		if err := os.Remove(path); err != nil {
			return removed, apperrors.Wrap(apperrors.KindStorageError, "failed to remove drift report", err)
		}
		removed = append(removed, report.ID)
	}
	return removed, nil
}

// ReferencedSnapshotIDs returns every snapshot id a retained report of the
// scope still points at.
func (s *LocalReportStore) ReferencedSnapshotIDs(ctx context.Context, scope types.Scope) ([]string, error) {
	reports, err := s.loadScope(scope)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, 2*len(reports))
	var ids []string
	for _, report := range reports {
		for _, id := range []string{report.BaselineSnapshotID, report.CandidateSnapshotID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// loadScope loads all reports of a scope sorted newest first.
func (s *LocalReportStore) loadScope(scope types.Scope) ([]*types.DriftReport, error) {
	entries, err := os.ReadDir(s.scopeDir(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.KindStorageError, "failed to read report directory", err)
	}

	var reports []*types.DriftReport
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var report types.DriftReport
		if err := loadJSON(filepath.Join(s.scopeDir(scope), entry.Name()), &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Timestamp.Equal(reports[j].Timestamp) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

func reportFilename(ts time.Time, id string) string {
	return fmt.Sprintf("%s-%s.json", ts.UTC().Format("20060102T150405.000000000"), id)
}

// findByID walks the store tree looking for a record file named after the id.
func findByID(baseDir, id string) (string, error) {
	suffix := "-" + id + ".json"
	var found string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageError, "failed to scan store", err)
	}
	if found == "" {
		return "", apperrors.Newf(apperrors.KindNotFound, "record %s not found", id)
	}
	return found, nil
}

func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.Wrap(apperrors.KindNotFound, "record not found", err)
		}
		return apperrors.Wrap(apperrors.KindStorageError, "failed to read record", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(apperrors.KindStorageError, "failed to decode record", err)
	}
	return nil
}
