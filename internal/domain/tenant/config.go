package tenant

import (
	"strings"
)

// chain returns the tenant followed by its loaded ancestors, root last.
func (t *Tenant) chain() []*Tenant {
	return append([]*Tenant{t}, t.Ancestors()...)
}

// GetMergedConfig returns the inheritance-applied configuration including
// the visibility tree. Values are overridden leaf by leaf: the tenant wins
// over its parent, the parent over the grandparent.
func (t *Tenant) GetMergedConfig() Tree {
	chain := t.chain()
	merged := Tree{}
	for i := len(chain) - 1; i >= 0; i-- {
		OverlayLeaves(merged, chain[i].Config)
	}
	return merged
}

// GetResolvedConfig returns the inheritance-applied configuration with the
// visibility tree removed. For trusted callers only.
func (t *Tenant) GetResolvedConfig() Tree {
	return StripVisibility(t.GetMergedConfig())
}

// GetConfig returns the value at key from the tenant or the nearest ancestor
// defining it, or def. The chain is walked per key, so a scalar a child sets
// at a parent path does not hide the parent's leaves below it. Sections
// defined along the chain are merged leaf by leaf up to the first ancestor
// that sets the key to a scalar.
func (t *Tenant) GetConfig(key string, def any) any {
	if isReservedKey(key) {
		return def
	}
	var sections []Tree
	for _, node := range t.chain() {
		v, ok := GetPath(node.Config, key)
		if !ok {
			continue
		}
		sub, isSection := asTree(v)
		if !isSection {
			if len(sections) == 0 {
				return cloneValue(v)
			}
			break
		}
		sections = append(sections, sub)
	}
	if len(sections) == 0 {
		return def
	}
	merged := Tree{}
	for i := len(sections) - 1; i >= 0; i-- {
		OverlayLeaves(merged, sections[i])
	}
	return merged
}

// GetConfigString is GetConfig for string values. Non-string values yield def.
func (t *Tenant) GetConfigString(key, def string) string {
	if s, ok := t.GetConfig(key, nil).(string); ok {
		return s
	}
	return def
}

// HasConfig reports whether the tenant or an ancestor sets key.
func (t *Tenant) HasConfig(key string) bool {
	if isReservedKey(key) {
		return false
	}
	for _, node := range t.chain() {
		if _, ok := GetPath(node.Config, key); ok {
			return true
		}
	}
	return false
}

// HasOwnConfig reports whether the tenant itself sets key.
func (t *Tenant) HasOwnConfig(key string) bool {
	if isReservedKey(key) {
		return false
	}
	_, ok := GetPath(t.Config, key)
	return ok
}

// SetConfig stores value at key, keeping the nested structure. A nil value
// clears the override so the key inherits again.
func (t *Tenant) SetConfig(key string, value any) error {
	if strings.Trim(key, ".") == "" {
		return ErrEmptyConfigKey
	}
	if isReservedKey(key) {
		return ErrReservedConfigKey
	}
	if t.Config == nil {
		t.Config = Tree{}
	}
	if value == nil {
		UnsetPath(t.Config, key)
	} else {
		SetPath(t.Config, key, cloneValue(value))
	}
	t.touch()
	t.AddDomainEvent(NewConfigChangedEvent(t, key))
	return nil
}

// UnsetConfig removes the tenant's own override for key.
func (t *Tenant) UnsetConfig(key string) error {
	return t.SetConfig(key, nil)
}

// Visibility returns the inheritance-applied visibility tree.
func (t *Tenant) Visibility() Tree {
	if v, ok := GetPath(t.GetMergedConfig(), VisibilityKey); ok {
		if tree, ok := asTree(v); ok {
			return tree
		}
	}
	return Tree{}
}

// SetVisibility annotates key with level.
func (t *Tenant) SetVisibility(key string, level Visibility) error {
	if strings.Trim(key, ".") == "" {
		return ErrEmptyConfigKey
	}
	if isReservedKey(key) {
		return ErrReservedConfigKey
	}
	if t.Config == nil {
		t.Config = Tree{}
	}
	SetPath(t.Config, VisibilityKey+"."+strings.Trim(key, "."), level.String())
	t.touch()
	t.AddDomainEvent(NewConfigChangedEvent(t, VisibilityKey+"."+key))
	return nil
}

// GetConfigByVisibility returns resolved configuration annotated at least min.
func (t *Tenant) GetConfigByVisibility(min Visibility) Tree {
	merged := t.GetMergedConfig()
	vis, _ := asTree(merged[VisibilityKey])
	return FilterByVisibility(StripVisibility(merged), vis, min)
}

// GetPublicConfig returns the configuration safe for unauthenticated clients.
func (t *Tenant) GetPublicConfig() Tree {
	return t.GetConfigByVisibility(VisibilityPublic)
}

// GetProtectedConfig returns the configuration safe for internal clients.
func (t *Tenant) GetProtectedConfig() Tree {
	return t.GetConfigByVisibility(VisibilityProtected)
}

func isReservedKey(key string) bool {
	key = strings.Trim(key, ".")
	return key == VisibilityKey || strings.HasPrefix(key, VisibilityKey+".")
}
