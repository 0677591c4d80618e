package tenant

import "strings"

// Visibility controls how far a configuration key may travel beyond the
// trusted backend. Levels are ordered PRIVATE < PROTECTED < PUBLIC.
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityProtected
	VisibilityPublic
)

// VisibilityKey is the reserved config key holding the visibility tree.
const VisibilityKey = "_visibility"

// String returns the stored representation of the level.
func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "PUBLIC"
	case VisibilityProtected:
		return "PROTECTED"
	default:
		return "PRIVATE"
	}
}

// ParseVisibility parses a level name case-insensitively. Anything it does
// not recognise is PRIVATE.
func ParseVisibility(s string) Visibility {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PUBLIC":
		return VisibilityPublic
	case "PROTECTED":
		return VisibilityProtected
	default:
		return VisibilityPrivate
	}
}

func visibilityOf(v any) Visibility {
	switch val := v.(type) {
	case Visibility:
		return val
	case string:
		return ParseVisibility(val)
	default:
		return VisibilityPrivate
	}
}

// FilterByVisibility returns the part of config whose annotated visibility is
// at least min. The walk is driven by the visibility tree; config keys with
// no annotation are private and never returned. Missing config keys are
// skipped.
func FilterByVisibility(config, visibility Tree, min Visibility) Tree {
	out := Tree{}
	for key, annotation := range visibility {
		if key == VisibilityKey {
			continue
		}
		value, present := config[key]
		if sub, ok := asTree(annotation); ok {
			subConfig, ok := asTree(value)
			if !ok {
				continue
			}
			if filtered := FilterByVisibility(subConfig, sub, min); len(filtered) > 0 {
				out[key] = filtered
			}
			continue
		}
		if !present || value == nil {
			continue
		}
		if visibilityOf(annotation) >= min {
			out[key] = cloneValue(value)
		}
	}
	return out
}

// StripVisibility returns a copy of tree with the reserved visibility key
// removed at every depth, maps held in lists included.
func StripVisibility(tree Tree) Tree {
	out := make(Tree, len(tree))
	for k, v := range tree {
		if k == VisibilityKey {
			continue
		}
		out[k] = stripValue(v)
	}
	return out
}

func stripValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return StripVisibility(val)
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = stripValue(val[i])
		}
		return cp
	default:
		return cloneValue(v)
	}
}
