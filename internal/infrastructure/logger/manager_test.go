package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestManager_TenantFile(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)
	pool := NewFilePool()
	defer pool.Close()

	rt := config.NewRuntime(map[string]any{"log": map[string]any{"level": "info"}})
	m := NewManager(base, pool, rt)

	t.Run("without tenant file uses base", func(t *testing.T) {
		assert.Same(t, base, m.Logger())
	})

	t.Run("tenant file receives entries after invalidation", func(t *testing.T) {
		path := filepath.Join(dir, "tenant_abc.log")
		rt.Set("log.tenant_file", path)
		rt.Invalidate("log")

		l := m.Logger()
		assert.NotSame(t, base, l)
		l.Info("tenant entry")
		l.Debug("below tenant level")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "tenant entry")
		assert.NotContains(t, string(data), "below tenant level")
		assert.Equal(t, 2, logs.Len())
		assert.Equal(t, 1, pool.Len())
	})

	t.Run("reset returns to base", func(t *testing.T) {
		rt.Reset()
		assert.Same(t, base, m.Logger())
	})

	t.Run("units share pooled files", func(t *testing.T) {
		path := filepath.Join(dir, "tenant_shared.log")
		for i := 0; i < 2; i++ {
			unit := rt.Fork()
			unit.Set("log.tenant_file", path)
			NewManager(base, pool, unit).Logger().Info("entry")
		}
		assert.Equal(t, 2, pool.Len())
	})
}
