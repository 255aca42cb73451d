package analyzer

import (
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/pkg/types"
)

// DefaultMediumThreshold is the number of configuration-bucket changes above
// which a report without security or access changes grades medium.
const DefaultMediumThreshold = 5

// DefaultBuckets maps the four collection categories to the three summary
// buckets. The mapping is a configurable default, not a fixed contract.
func DefaultBuckets() map[types.Category]types.Bucket {
	return map[types.Category]types.Bucket{
		types.CategoryResources:          types.BucketConfiguration,
		types.CategorySecuritySettings:   types.BucketSecurity,
		types.CategoryRBACAssignments:    types.BucketAccess,
		types.CategoryMonitoringSettings: types.BucketConfiguration,
	}
}

// Options configures severity grading.
type Options struct {
	// MediumThreshold is the configuration-change count above which severity
	// is raised from low to medium. Zero means the default.
	MediumThreshold int
	// Buckets overrides the category to summary-bucket mapping.
	Buckets map[types.Category]types.Bucket
}

// Analyzer computes deterministic drift reports between two snapshots of the
// same scope.
type Analyzer struct {
	mediumThreshold int
	buckets         map[types.Category]types.Bucket
}

// New creates an analyzer, filling in defaults for unset options.
func New(opts Options) *Analyzer {
	threshold := opts.MediumThreshold
	if threshold <= 0 {
		threshold = DefaultMediumThreshold
	}
	buckets := opts.Buckets
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	return &Analyzer{mediumThreshold: threshold, buckets: buckets}
}

// Diff compares a baseline snapshot against a strictly newer candidate of the
// same scope. The emitted change list is fully ordered: categories in their
// fixed order, resource types lexicographic, then resource id and property
// path, so the same snapshot pair always yields an identical report body.
func (a *Analyzer) Diff(baseline, candidate *types.Snapshot) (*types.DriftReport, error) {
	if !baseline.Scope.Equal(candidate.Scope) {
		return nil, apperrors.Newf(apperrors.KindScopeMismatch,
			"cannot diff snapshots from %s and %s", baseline.Scope, candidate.Scope)
	}
	if candidate.Sequence <= baseline.Sequence {
		return nil, apperrors.Newf(apperrors.KindInvalidOrder,
			"candidate sequence %d must be greater than baseline sequence %d",
			candidate.Sequence, baseline.Sequence)
	}

	var changes []types.Change
	for _, category := range types.Categories() {
		before := baseline.Configuration.Partition(category)
		after := candidate.Configuration.Partition(category)
		changes = append(changes, a.diffCategory(category, before, after)...)
	}

	report := &types.DriftReport{
		ID:                  uuid.New().String(),
		Scope:               candidate.Scope,
		Timestamp:           time.Now().UTC(),
		BaselineSnapshotID:  baseline.ID,
		CandidateSnapshotID: candidate.ID,
		HasDrift:            len(changes) > 0,
		Changes:             changes,
		Summary:             a.summarize(changes),
	}
	return report, nil
}

// diffCategory compares one partition of the two configurations.
func (a *Analyzer) diffCategory(category types.Category, before, after types.ResourceSet) []types.Change {
	var changes []types.Change
	for _, resourceType := range unionKeys(before, after) {
		bucket := a.diffResourceType(category, resourceType, before[resourceType], after[resourceType])
		sortBucket(bucket)
		changes = append(changes, bucket...)
	}
	return changes
}

// diffResourceType computes the changes for a single (category, type) bucket.
func (a *Analyzer) diffResourceType(category types.Category, resourceType string, before, after map[string]*types.ConfigTree) []types.Change {
	var changes []types.Change

	for id, tree := range after {
		if _, ok := before[id]; !ok {
			changes = append(changes, types.Change{
				Category:     category,
				ResourceType: resourceType,
				ResourceID:   id,
				ChangeType:   types.ChangeAdded,
				NewValue:     tree.Interface(),
			})
		}
	}
	for id, tree := range before {
		if _, ok := after[id]; !ok {
			changes = append(changes, types.Change{
				Category:     category,
				ResourceType: resourceType,
				ResourceID:   id,
				ChangeType:   types.ChangeDeleted,
				OldValue:     tree.Interface(),
			})
		}
	}
	for id, beforeTree := range before {
		afterTree, ok := after[id]
		if !ok {
			continue
		}
		for _, leaf := range diffTrees("", beforeTree, afterTree) {
			changes = append(changes, types.Change{
				Category:     category,
				ResourceType: resourceType,
				ResourceID:   id,
				ChangeType:   types.ChangeModified,
				PropertyPath: leaf.path,
				OldValue:     leaf.oldValue,
				NewValue:     leaf.newValue,
			})
		}
	}
	return changes
}

type leafChange struct {
	path     string
	oldValue interface{}
	newValue interface{}
}

// diffTrees walks two configuration trees key-wise and collects every leaf
// path whose value differs. A key missing on one side surfaces as a change
// with a nil value on that side.
func diffTrees(prefix string, before, after *types.ConfigTree) []leafChange {
	if before.IsNode() && after.IsNode() {
		var changes []leafChange
		for _, key := range unionTreeKeys(before, after) {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			beforeChild, inBefore := before.Child(key)
			afterChild, inAfter := after.Child(key)
			switch {
			case inBefore && inAfter:
				changes = append(changes, diffTrees(path, beforeChild, afterChild)...)
			case inBefore:
				changes = append(changes, leafChange{path: path, oldValue: beforeChild.Interface()})
			default:
				changes = append(changes, leafChange{path: path, newValue: afterChild.Interface()})
			}
		}
		return changes
	}

	if before.Equal(after) {
		return nil
	}
	return []leafChange{{path: prefix, oldValue: before.Interface(), newValue: after.Interface()}}
}

// summarize computes the severity summary for an ordered change list.
func (a *Analyzer) summarize(changes []types.Change) types.Summary {
	counts := map[types.Bucket]int{
		types.BucketSecurity:      0,
		types.BucketAccess:        0,
		types.BucketConfiguration: 0,
	}
	for _, c := range changes {
		bucket, ok := a.buckets[c.Category]
		if !ok {
			bucket = types.BucketConfiguration
		}
		counts[bucket]++
	}

	severity := types.SeverityLow
	switch {
	case counts[types.BucketSecurity] > 0 || counts[types.BucketAccess] > 0:
		severity = types.SeverityHigh
	case counts[types.BucketConfiguration] > a.mediumThreshold:
		severity = types.SeverityMedium
	}

	return types.Summary{
		TotalChanges: len(changes),
		Severity:     severity,
		Categories:   counts,
	}
}

// sortBucket orders changes within one (category, type) bucket by resource id
// then property path. The empty path sorts first, so resource-level adds and
// deletes precede property modifications of the same id.
func sortBucket(changes []types.Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].ResourceID != changes[j].ResourceID {
			return changes[i].ResourceID < changes[j].ResourceID
		}
		return changes[i].PropertyPath < changes[j].PropertyPath
	})
}

func unionKeys(a, b types.ResourceSet) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionTreeKeys(a, b *types.ConfigTree) []string {
	seen := make(map[string]struct{})
	for _, k := range a.Keys() {
		seen[k] = struct{}{}
	}
	for _, k := range b.Keys() {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
