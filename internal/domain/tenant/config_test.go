package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenant_ConfigInheritance(t *testing.T) {
	parent := mustTenant(t, "parent", WithConfig(Tree{
		"app":   Tree{"name": "Parent", "locale": "en"},
		"cache": Tree{"driver": "redis"},
	}))
	child := mustTenant(t, "child", WithParent(parent), WithConfig(Tree{
		"app": Tree{"name": "Child"},
	}))

	t.Run("child value wins", func(t *testing.T) {
		assert.Equal(t, "Child", child.GetConfig("app.name", "default"))
	})

	t.Run("parent fills unset leaves", func(t *testing.T) {
		assert.Equal(t, "en", child.GetConfig("app.locale", "default"))
		assert.Equal(t, "redis", child.GetConfig("cache.driver", "default"))
	})

	t.Run("default when nobody sets key", func(t *testing.T) {
		assert.Equal(t, "default", child.GetConfig("app.timezone", "default"))
	})

	t.Run("nil means unset", func(t *testing.T) {
		require.NoError(t, child.SetConfig("app.locale", "fr"))
		assert.Equal(t, "fr", child.GetConfig("app.locale", nil))
		require.NoError(t, child.SetConfig("app.locale", nil))
		assert.Equal(t, "en", child.GetConfig("app.locale", nil))
	})

	t.Run("has config is chain aware", func(t *testing.T) {
		assert.True(t, child.HasConfig("cache.driver"))
		assert.False(t, child.HasOwnConfig("cache.driver"))
		assert.True(t, child.HasOwnConfig("app.name"))
		assert.False(t, child.HasConfig("mail.host"))
	})

	t.Run("merged keeps sibling keys", func(t *testing.T) {
		merged := child.GetResolvedConfig()
		assert.Equal(t, Tree{"name": "Child", "locale": "en"}, merged["app"])
	})

	t.Run("merged config is a copy", func(t *testing.T) {
		merged := child.GetResolvedConfig()
		merged["app"].(Tree)["name"] = "mutated"
		assert.Equal(t, "Child", child.GetConfig("app.name", nil))
	})
}

func TestTenant_GetConfigWalksChainPerKey(t *testing.T) {
	parent := mustTenant(t, "parent", WithConfig(Tree{
		"app":  Tree{"name": "Parent", "locale": "en"},
		"mail": Tree{"host": "smtp.parent", "port": 25},
	}))
	child := mustTenant(t, "child", WithParent(parent), WithConfig(Tree{
		"app":  "legacy",
		"mail": Tree{"host": "smtp.child"},
	}))

	assert.Equal(t, "Parent", child.GetConfig("app.name", "default"))
	assert.Equal(t, "legacy", child.GetConfig("app", nil))
	assert.Equal(t, Tree{"host": "smtp.child", "port": 25}, child.GetConfig("mail", nil))
	assert.True(t, child.HasConfig("app.name"))

	section := child.GetConfig("mail", nil).(Tree)
	section["host"] = "mutated"
	assert.Equal(t, "smtp.child", child.GetConfig("mail.host", nil))
}

func TestTenant_SetConfig(t *testing.T) {
	tn := mustTenant(t, "acme")
	tn.ClearDomainEvents()

	require.NoError(t, tn.SetConfig("mail.from.address", "ops@acme.test"))
	assert.Equal(t, Tree{"from": Tree{"address": "ops@acme.test"}}, tn.Config["mail"])
	assert.Equal(t, "ops@acme.test", tn.GetConfigString("mail.from.address", ""))
	assert.Equal(t, "x", tn.GetConfigString("mail.from", "x"))

	require.Len(t, tn.GetDomainEvents(), 1)
	ev, ok := tn.GetDomainEvents()[0].(*ConfigChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "mail.from.address", ev.Key)

	assert.ErrorIs(t, tn.SetConfig("", "x"), ErrEmptyConfigKey)
	assert.ErrorIs(t, tn.SetConfig("_visibility.app", "PUBLIC"), ErrReservedConfigKey)
	assert.Nil(t, tn.GetConfig("_visibility", nil))
	assert.False(t, tn.HasConfig("_visibility"))
}

func TestTenant_ResolvedConfigHasNoVisibility(t *testing.T) {
	parent := mustTenant(t, "parent", WithConfig(Tree{
		"app":         Tree{"name": "Parent"},
		VisibilityKey: Tree{"app": Tree{"name": "PUBLIC"}},
	}))
	child := mustTenant(t, "child", WithParent(parent), WithConfig(Tree{
		"nested": Tree{VisibilityKey: "stray"},
	}))
	require.NoError(t, child.SetVisibility("app.url", VisibilityProtected))

	resolved := child.GetResolvedConfig()
	_, ok := resolved[VisibilityKey]
	assert.False(t, ok)
	assert.Equal(t, Tree{}, resolved["nested"])

	merged := child.GetMergedConfig()
	assert.Contains(t, merged, VisibilityKey)
}

func TestTenant_VisibilityExample(t *testing.T) {
	tn := mustTenant(t, "acme", WithConfig(Tree{
		"app":      Tree{"name": "Acme", "url": "https://acme.example.com"},
		"database": Tree{"password": "secret"},
	}))
	require.NoError(t, tn.SetVisibility("app.name", VisibilityPublic))
	require.NoError(t, tn.SetVisibility("app.url", VisibilityProtected))

	assert.Equal(t, Tree{"app": Tree{"name": "Acme"}}, tn.GetPublicConfig())
	assert.Equal(t, Tree{"app": Tree{"name": "Acme", "url": "https://acme.example.com"}}, tn.GetProtectedConfig())
	assert.Equal(t, Tree{}, tn.GetConfigByVisibility(VisibilityPublic+1))
}

func TestTenant_PublicSubsetOfProtected(t *testing.T) {
	parent := mustTenant(t, "parent", WithConfig(Tree{
		"app":  Tree{"name": "Parent", "url": "https://p.test", "key": "secret"},
		"mail": Tree{"from": Tree{"address": "a@p.test", "name": "P"}},
		VisibilityKey: Tree{
			"app":  Tree{"name": "PUBLIC", "url": "protected"},
			"mail": Tree{"from": Tree{"address": "PROTECTED", "name": "public"}},
		},
	}))
	child := mustTenant(t, "child", WithParent(parent))
	require.NoError(t, child.SetVisibility("app.url", VisibilityPublic))

	for _, tn := range []*Tenant{parent, child} {
		public := Leaves(tn.GetPublicConfig())
		protected := Leaves(tn.GetProtectedConfig())
		for k, v := range public {
			assert.Equal(t, v, protected[k], k)
		}
		assert.NotContains(t, protected, "app.key")
	}
	assert.Contains(t, Leaves(child.GetPublicConfig()), "app.url")
	assert.NotContains(t, Leaves(parent.GetPublicConfig()), "app.url")
}
