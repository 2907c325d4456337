package state

import "strings"

// Value is a plain-data state value (map, slice, string, bool, or number).
type Value = any

// Tree maps module names to their private sub-states. The top-level keys of
// a live tree are exactly the registered module names; nothing outside the
// manager's commit path mutates it.
type Tree map[string]Value

// DeepClone returns a structurally independent copy of v. Maps and slices
// are copied recursively; scalars are returned as-is. Values outside the
// plain-data set are shared, not copied, so modules must keep their
// sub-states JSON-shaped.
func DeepClone(v Value) Value {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = DeepClone(item)
		}
		return out
	case Tree:
		out := make(Tree, len(tv))
		for k, item := range tv {
			out[k] = DeepClone(item)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = DeepClone(item)
		}
		return out
	default:
		return v
	}
}

// CloneTree deep-copies an entire state tree.
func CloneTree(t Tree) Tree {
	out := make(Tree, len(t))
	for name, sub := range t {
		out[name] = DeepClone(sub)
	}
	return out
}

// GetPath resolves a dotted path ("projects.items" or "counter.value")
// against the tree. Missing segments yield (nil, false), never a panic.
func GetPath(t Tree, path string) (Value, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")

	var current Value = map[string]any(treeAsMap(t))
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ShallowMergeModule merges incoming into base one key deep: top-level keys
// of incoming win; when both sides hold maps the maps are merged key-by-key,
// incoming winning per key. Non-map sub-states are replaced outright.
func ShallowMergeModule(base, incoming Value) Value {
	baseMap, baseOK := base.(map[string]any)
	inMap, inOK := incoming.(map[string]any)
	if !baseOK || !inOK {
		return DeepClone(incoming)
	}
	merged := make(map[string]any, len(baseMap)+len(inMap))
	for k, v := range baseMap {
		merged[k] = DeepClone(v)
	}
	for k, v := range inMap {
		merged[k] = DeepClone(v)
	}
	return merged
}

func treeAsMap(t Tree) map[string]any {
	m := make(map[string]any, len(t))
	for k, v := range t {
		m[k] = v
	}
	return m
}
