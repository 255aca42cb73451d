package types

import (
	"fmt"
	"time"
)

// ChangeType represents the type of change detected between two snapshots.
type ChangeType string

const (
	// ChangeAdded indicates a resource present only in the candidate snapshot.
	ChangeAdded ChangeType = "added"
	// ChangeModified indicates a property value that differs between snapshots.
	ChangeModified ChangeType = "modified"
	// ChangeDeleted indicates a resource present only in the baseline snapshot.
	ChangeDeleted ChangeType = "deleted"
)

// IsValid checks if the ChangeType is one of the known values.
func (ct ChangeType) IsValid() bool {
	switch ct {
	case ChangeAdded, ChangeModified, ChangeDeleted:
		return true
	default:
		return false
	}
}

// Severity grades the overall impact of a drift report.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Bucket is a summary grouping of configuration categories.
type Bucket string

const (
	BucketSecurity      Bucket = "security"
	BucketAccess        Bucket = "access"
	BucketConfiguration Bucket = "configuration"
)

// Change represents a single difference between two snapshots. PropertyPath,
// OldValue and NewValue carry the dotted leaf path and both leaf values for
// modifications; added and deleted changes carry the whole resource tree in
// NewValue or OldValue respectively and a null path.
type Change struct {
	Category     Category    `json:"category"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	ChangeType   ChangeType  `json:"change_type"`
	PropertyPath string      `json:"property_path,omitempty"`
	OldValue     interface{} `json:"old_value,omitempty"`
	NewValue     interface{} `json:"new_value,omitempty"`
}

// Validate checks that the change is internally consistent.
func (c *Change) Validate() error {
	if c.ResourceID == "" {
		return fmt.Errorf("change resource ID cannot be empty")
	}
	if !c.ChangeType.IsValid() {
		return fmt.Errorf("invalid change type: %s", c.ChangeType)
	}
	switch c.ChangeType {
	case ChangeAdded:
		if c.PropertyPath != "" || c.OldValue != nil {
			return fmt.Errorf("added change must not carry a property path or old value")
		}
	case ChangeDeleted:
		if c.PropertyPath != "" || c.NewValue != nil {
			return fmt.Errorf("deleted change must not carry a property path or new value")
		}
	}
	return nil
}

// Summary aggregates the changes of a drift report.
type Summary struct {
	TotalChanges int            `json:"total_changes"`
	Severity     Severity       `json:"severity"`
	Categories   map[Bucket]int `json:"categories"`
}

// DriftReport is the immutable result of diffing a baseline snapshot against
// a strictly newer candidate snapshot of the same scope.
type DriftReport struct {
	ID                  string    `json:"id"`
	Scope               Scope     `json:"scope"`
	Timestamp           time.Time `json:"timestamp"`
	BaselineSnapshotID  string    `json:"baseline_snapshot_id"`
	CandidateSnapshotID string    `json:"candidate_snapshot_id"`
	HasDrift            bool      `json:"has_drift"`
	Changes             []Change  `json:"changes"`
	Summary             Summary   `json:"summary"`
}

// Validate checks that the drift report has all required fields.
func (r *DriftReport) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("drift report ID cannot be empty")
	}
	if err := r.Scope.Validate(); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("drift report timestamp cannot be zero")
	}
	if r.BaselineSnapshotID == "" {
		return fmt.Errorf("drift report baseline snapshot ID cannot be empty")
	}
	if r.CandidateSnapshotID == "" {
		return fmt.Errorf("drift report candidate snapshot ID cannot be empty")
	}
	if r.BaselineSnapshotID == r.CandidateSnapshotID {
		return fmt.Errorf("drift report must reference two distinct snapshots")
	}
	for i := range r.Changes {
		if err := r.Changes[i].Validate(); err != nil {
			return fmt.Errorf("invalid change at index %d: %w", i, err)
		}
	}
	return nil
}

// ChangeCount returns the total number of changes in the report.
func (r *DriftReport) ChangeCount() int {
	return len(r.Changes)
}

// ChangesByType returns all changes of a specific type.
func (r *DriftReport) ChangesByType(ct ChangeType) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.ChangeType == ct {
			out = append(out, c)
		}
	}
	return out
}

// ChangesByCategory returns all changes in a specific category.
func (r *DriftReport) ChangesByCategory(cat Category) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}
