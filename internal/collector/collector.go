package collector

import (
	"context"

	"github.com/driftscope/driftscope/pkg/types"
)

// Collector is the injected capability that returns the normalized
// configuration of a scope. Implementations classify transient failures as
// CollectorUnavailable so the orchestrator knows what it may retry.
type Collector interface {
	// Name identifies the collector implementation.
	Name() string
	// Fetch returns the current configuration tree for the scope.
	Fetch(ctx context.Context, scope types.Scope) (*types.Configuration, error)
}
