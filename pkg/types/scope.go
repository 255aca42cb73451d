package types

import (
	"errors"
	"fmt"
	"strings"
)

// Scope identifies the monitored boundary: one resource group inside one
// subscription. Every snapshot and drift report belongs to exactly one scope
// and cross-scope comparison is rejected.
type Scope struct {
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
}

// Key returns the canonical scope key used for storage paths and lock tables.
func (s Scope) Key() string {
	return s.SubscriptionID + "/" + s.ResourceGroup
}

// Equal reports whether two scopes identify the same boundary.
func (s Scope) Equal(other Scope) bool {
	return s.SubscriptionID == other.SubscriptionID && s.ResourceGroup == other.ResourceGroup
}

// Validate checks that both scope components are present and path-safe.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.SubscriptionID) == "" {
		return errors.New("subscription ID is required")
	}
	if strings.TrimSpace(s.ResourceGroup) == "" {
		return errors.New("resource group is required")
	}
	for _, part := range []string{s.SubscriptionID, s.ResourceGroup} {
		if strings.ContainsAny(part, "/\\") {
			return fmt.Errorf("scope component %q contains path separators", part)
		}
	}
	return nil
}

// String returns a human-readable representation of the scope.
func (s Scope) String() string {
	return s.Key()
}
