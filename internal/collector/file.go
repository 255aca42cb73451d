package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/pkg/types"
)

// FileCollector reads exported configuration documents from a directory.
// Documents are laid out as <dir>/<subscription>/<resource-group>.json and
// hold the four-way category partition produced by the export tooling.
type FileCollector struct {
	dir string
}

// NewFileCollector creates a collector rooted at dir.
func NewFileCollector(dir string) *FileCollector {
	return &FileCollector{dir: dir}
}

func (c *FileCollector) Name() string {
	return "file"
}

// Fetch loads the configuration document for the scope. A missing or
// unreadable document is transient: the export job may simply not have run
// yet for this scope.
func (c *FileCollector) Fetch(ctx context.Context, scope types.Scope) (*types.Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid scope", err)
	}

	path := filepath.Join(c.dir, scope.SubscriptionID, scope.ResourceGroup+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCollectorUnavailable,
			fmt.Sprintf("configuration document %s unavailable", path), err)
	}

	return decodeConfiguration(data)
}

// decodeConfiguration parses an exported configuration document into the
// fixed four-way partition. Absent partitions decode as empty sets.
func decodeConfiguration(data []byte) (*types.Configuration, error) {
	var config types.Configuration
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "malformed configuration document", err)
	}
	if config.Resources == nil {
		config.Resources = types.ResourceSet{}
	}
	if config.SecuritySettings == nil {
		config.SecuritySettings = types.ResourceSet{}
	}
	if config.RBACAssignments == nil {
		config.RBACAssignments = types.ResourceSet{}
	}
	if config.MonitoringSettings == nil {
		config.MonitoringSettings = types.ResourceSet{}
	}
	return &config, nil
}
