package types

import (
	"errors"
	"time"
)

// Snapshot represents an immutable point-in-time capture of a scope's
// configuration. Sequence is a monotonically increasing per-scope counter
// that breaks timestamp ties deterministically, so clock skew never affects
// snapshot ordering.
type Snapshot struct {
	ID            string         `json:"id"`
	Scope         Scope          `json:"scope"`
	Timestamp     time.Time      `json:"timestamp"`
	Sequence      uint64         `json:"sequence"`
	Configuration *Configuration `json:"configuration"`
}

// Validate checks that the snapshot has all required fields.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID is required")
	}
	if err := s.Scope.Validate(); err != nil {
		return err
	}
	if s.Timestamp.IsZero() {
		return errors.New("snapshot timestamp is required")
	}
	if s.Configuration == nil {
		return errors.New("snapshot configuration cannot be nil")
	}
	return nil
}

// ResourceCount returns the number of resources captured in the snapshot.
func (s *Snapshot) ResourceCount() int {
	if s.Configuration == nil {
		return 0
	}
	return s.Configuration.ResourceCount()
}

// Before reports whether s orders strictly before other by
// (timestamp, sequence).
func (s *Snapshot) Before(other *Snapshot) bool {
	if s.Timestamp.Equal(other.Timestamp) {
		return s.Sequence < other.Sequence
	}
	return s.Timestamp.Before(other.Timestamp)
}

// Clone creates a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		ID:            s.ID,
		Scope:         s.Scope,
		Timestamp:     s.Timestamp,
		Sequence:      s.Sequence,
		Configuration: s.Configuration.Clone(),
	}
}

// String returns a string representation of the snapshot.
func (s *Snapshot) String() string {
	return s.Scope.Key() + " snapshot " + s.ID + " (" + s.Timestamp.Format(time.RFC3339) + ")"
}
