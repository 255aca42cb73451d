package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Before(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := &Snapshot{Timestamp: ts, Sequence: 1}
	later := &Snapshot{Timestamp: ts.Add(time.Hour), Sequence: 2}

	assert.True(t, earlier.Before(later))
	assert.False(t, later.Before(earlier))

	// Identical timestamps fall back to the sequence counter.
	tied := &Snapshot{Timestamp: ts, Sequence: 2}
	assert.True(t, earlier.Before(tied))
	assert.False(t, tied.Before(earlier))
	assert.False(t, earlier.Before(earlier))
}

func TestSnapshot_Validate(t *testing.T) {
	valid := &Snapshot{
		ID:            "snap-1",
		Scope:         Scope{SubscriptionID: "sub-1", ResourceGroup: "rg-1"},
		Timestamp:     time.Now(),
		Configuration: &Configuration{},
	}
	require.NoError(t, valid.Validate())

	missingID := valid.Clone()
	missingID.ID = ""
	assert.Error(t, missingID.Validate())

	missingConfig := valid.Clone()
	missingConfig.Configuration = nil
	assert.Error(t, missingConfig.Validate())

	zeroTime := valid.Clone()
	zeroTime.Timestamp = time.Time{}
	assert.Error(t, zeroTime.Validate())
}

func TestChange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		change  Change
		wantErr bool
	}{
		{
			"valid modified",
			Change{ResourceID: "r1", ChangeType: ChangeModified, PropertyPath: "tier", OldValue: "a", NewValue: "b"},
			false,
		},
		{
			"valid added",
			Change{ResourceID: "r1", ChangeType: ChangeAdded, NewValue: map[string]interface{}{"a": 1}},
			false,
		},
		{
			"valid deleted",
			Change{ResourceID: "r1", ChangeType: ChangeDeleted, OldValue: map[string]interface{}{"a": 1}},
			false,
		},
		{
			"added with property path",
			Change{ResourceID: "r1", ChangeType: ChangeAdded, PropertyPath: "tier"},
			true,
		},
		{
			"deleted with new value",
			Change{ResourceID: "r1", ChangeType: ChangeDeleted, NewValue: "x"},
			true,
		},
		{"missing resource id", Change{ChangeType: ChangeModified}, true},
		{"unknown change type", Change{ResourceID: "r1", ChangeType: "renamed"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDriftReport_Validate(t *testing.T) {
	valid := &DriftReport{
		ID:                  "rep-1",
		Scope:               Scope{SubscriptionID: "sub-1", ResourceGroup: "rg-1"},
		Timestamp:           time.Now(),
		BaselineSnapshotID:  "snap-1",
		CandidateSnapshotID: "snap-2",
	}
	require.NoError(t, valid.Validate())

	sameSnapshots := *valid
	sameSnapshots.CandidateSnapshotID = "snap-1"
	assert.Error(t, sameSnapshots.Validate())
}
