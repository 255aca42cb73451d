package types

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
)

// ConfigTree is a normalized configuration value: either a leaf holding an
// arbitrary value or a node mapping property names to subtrees. JSON objects
// unmarshal as nodes; scalars, arrays and null unmarshal as leaves, so arrays
// are compared as whole values rather than element-wise.
type ConfigTree struct {
	value    interface{}
	children map[string]*ConfigTree
	node     bool
}

// Leaf creates a leaf tree holding the given value.
func Leaf(value interface{}) *ConfigTree {
	return &ConfigTree{value: value}
}

// Node creates a node tree with the given children. A nil map yields an
// empty node, not a leaf.
func Node(children map[string]*ConfigTree) *ConfigTree {
	if children == nil {
		children = make(map[string]*ConfigTree)
	}
	return &ConfigTree{children: children, node: true}
}

// TreeFromValue converts a decoded JSON value into a ConfigTree. Maps become
// nodes recursively, everything else becomes a leaf.
func TreeFromValue(v interface{}) *ConfigTree {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Leaf(v)
	}
	children := make(map[string]*ConfigTree, len(m))
	for k, cv := range m {
		children[k] = TreeFromValue(cv)
	}
	return Node(children)
}

// IsNode reports whether the tree is a mapping node.
func (t *ConfigTree) IsNode() bool {
	return t != nil && t.node
}

// Value returns the leaf value. Nodes return nil.
func (t *ConfigTree) Value() interface{} {
	if t == nil || t.node {
		return nil
	}
	return t.value
}

// Child returns the named subtree of a node.
func (t *ConfigTree) Child(key string) (*ConfigTree, bool) {
	if !t.IsNode() {
		return nil, false
	}
	c, ok := t.children[key]
	return c, ok
}

// Keys returns the sorted child keys of a node.
func (t *ConfigTree) Keys() []string {
	if !t.IsNode() {
		return nil
	}
	keys := make([]string, 0, len(t.children))
	for k := range t.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the tree back to a generic value suitable for JSON
// encoding or report payloads.
func (t *ConfigTree) Interface() interface{} {
	if t == nil {
		return nil
	}
	if !t.node {
		return t.value
	}
	out := make(map[string]interface{}, len(t.children))
	for k, c := range t.children {
		out[k] = c.Interface()
	}
	return out
}

// Equal reports deep structural equality of two trees.
func (t *ConfigTree) Equal(other *ConfigTree) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.node != other.node {
		return false
	}
	if !t.node {
		return LeafValuesEqual(t.value, other.value)
	}
	if len(t.children) != len(other.children) {
		return false
	}
	for k, c := range t.children {
		oc, ok := other.children[k]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the tree. Leaf values are shared; trees are
// treated as immutable once built.
func (t *ConfigTree) Clone() *ConfigTree {
	if t == nil {
		return nil
	}
	if !t.node {
		return Leaf(t.value)
	}
	children := make(map[string]*ConfigTree, len(t.children))
	for k, c := range t.children {
		children[k] = c.Clone()
	}
	return Node(children)
}

// MarshalJSON encodes nodes as JSON objects and leaves as their value.
func (t *ConfigTree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	if t.node {
		m := make(map[string]*ConfigTree, len(t.children))
		for k, c := range t.children {
			m[k] = c
		}
		return json.Marshal(m)
	}
	return json.Marshal(t.value)
}

// UnmarshalJSON decodes JSON objects as nodes and every other value as a leaf.
func (t *ConfigTree) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var children map[string]*ConfigTree
		if err := json.Unmarshal(data, &children); err != nil {
			return err
		}
		if children == nil {
			children = make(map[string]*ConfigTree)
		}
		t.children = children
		t.node = true
		t.value = nil
		return nil
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	t.value = value
	t.node = false
	t.children = nil
	return nil
}

// LeafValuesEqual compares two leaf values. Values that differ only in their
// decoded numeric type (int vs float64 after a JSON round trip) compare equal.
func LeafValuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(aj, bj)
}
