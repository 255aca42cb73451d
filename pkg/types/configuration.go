package types

// Category names one of the four fixed partitions of a configuration capture.
type Category string

const (
	CategoryResources          Category = "resources"
	CategorySecuritySettings   Category = "security_settings"
	CategoryRBACAssignments    Category = "rbac_assignments"
	CategoryMonitoringSettings Category = "monitoring_settings"
)

// Categories returns the partitions in their fixed comparison order.
func Categories() []Category {
	return []Category{
		CategoryResources,
		CategorySecuritySettings,
		CategoryRBACAssignments,
		CategoryMonitoringSettings,
	}
}

// ResourceSet maps a resource type to the configuration trees of its
// resources, keyed by resource id.
type ResourceSet map[string]map[string]*ConfigTree

// Clone returns a deep copy of the set.
func (rs ResourceSet) Clone() ResourceSet {
	if rs == nil {
		return nil
	}
	out := make(ResourceSet, len(rs))
	for rt, resources := range rs {
		cloned := make(map[string]*ConfigTree, len(resources))
		for id, tree := range resources {
			cloned[id] = tree.Clone()
		}
		out[rt] = cloned
	}
	return out
}

// Count returns the number of resources across all types in the set.
func (rs ResourceSet) Count() int {
	n := 0
	for _, resources := range rs {
		n += len(resources)
	}
	return n
}

// Configuration is the normalized capture of a scope, partitioned into the
// four fixed categories.
type Configuration struct {
	Resources          ResourceSet `json:"resources"`
	SecuritySettings   ResourceSet `json:"security_settings"`
	RBACAssignments    ResourceSet `json:"rbac_assignments"`
	MonitoringSettings ResourceSet `json:"monitoring_settings"`
}

// Partition returns the resource set for a category. Unknown categories
// return nil.
func (c *Configuration) Partition(cat Category) ResourceSet {
	switch cat {
	case CategoryResources:
		return c.Resources
	case CategorySecuritySettings:
		return c.SecuritySettings
	case CategoryRBACAssignments:
		return c.RBACAssignments
	case CategoryMonitoringSettings:
		return c.MonitoringSettings
	default:
		return nil
	}
}

// ResourceCount returns the total number of resources across all partitions.
func (c *Configuration) ResourceCount() int {
	return c.Resources.Count() +
		c.SecuritySettings.Count() +
		c.RBACAssignments.Count() +
		c.MonitoringSettings.Count()
}

// Clone returns a deep copy of the configuration.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	return &Configuration{
		Resources:          c.Resources.Clone(),
		SecuritySettings:   c.SecuritySettings.Clone(),
		RBACAssignments:    c.RBACAssignments.Clone(),
		MonitoringSettings: c.MonitoringSettings.Clone(),
	}
}
