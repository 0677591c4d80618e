package tenant

import "strings"

// Tree is a nested configuration map addressed with dot paths ("cache.prefix").
type Tree = map[string]any

func splitPath(path string) []string {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// GetPath returns the value stored at path and whether it was found.
// A nil value counts as not found.
func GetPath(tree Tree, path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 || tree == nil {
		return nil, false
	}
	var cur any = tree
	for _, p := range parts {
		m, ok := asTree(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// SetPath stores value at path, creating or replacing intermediate maps.
func SetPath(tree Tree, path string, value any) {
	parts := splitPath(path)
	if len(parts) == 0 || tree == nil {
		return
	}
	cur := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := asTree(cur[p])
		if !ok {
			next = Tree{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// UnsetPath removes the value at path. Empty parents are left in place.
func UnsetPath(tree Tree, path string) {
	parts := splitPath(path)
	if len(parts) == 0 || tree == nil {
		return
	}
	cur := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := asTree(cur[p])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// CloneTree deep-copies nested maps and slices. Scalars are shared.
func CloneTree(tree Tree) Tree {
	if tree == nil {
		return nil
	}
	out := make(Tree, len(tree))
	for k, v := range tree {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneTree(val)
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = cloneValue(val[i])
		}
		return cp
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Leaves flattens tree into dot path -> leaf value. Nil leaves and empty
// maps produce nothing.
func Leaves(tree Tree) map[string]any {
	out := make(map[string]any)
	collectLeaves(tree, "", out)
	return out
}

func collectLeaves(tree Tree, prefix string, out map[string]any) {
	for k, v := range tree {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := asTree(v); ok {
			collectLeaves(sub, path, out)
			continue
		}
		if v == nil {
			continue
		}
		out[path] = v
	}
}

// OverlayLeaves writes every leaf of src onto dst, leaf by leaf.
func OverlayLeaves(dst, src Tree) {
	for p, v := range Leaves(src) {
		SetPath(dst, p, cloneValue(v))
	}
}

func asTree(v any) (Tree, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
