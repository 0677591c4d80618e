package logger

import (
	"os"
	"sync"

	"github.com/tenancy/backend/internal/infrastructure/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FilePool keeps tenant log files open for the life of the process so units
// of work writing to the same file share one handle.
type FilePool struct {
	mu    sync.Mutex
	files map[string]*os.File
}

// NewFilePool creates an empty pool
func NewFilePool() *FilePool {
	return &FilePool{files: make(map[string]*os.File)}
}

func (p *FilePool) get(path string) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.files[path]; ok {
		return f, nil
	}
	f, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	p.files[path] = f
	return f, nil
}

// Len returns the number of open files
func (p *FilePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

// Close closes every pooled file
func (p *FilePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for path, f := range p.files {
		err = multierr.Append(err, f.Close())
		delete(p.files, path)
	}
	return err
}

// Manager hands out the logger for one unit of work. When the runtime
// configuration names a tenant log file, entries are also written there as
// JSON at log.level.
type Manager struct {
	base *zap.Logger
	pool *FilePool
	rt   *config.Runtime

	mu      sync.Mutex
	current *zap.Logger
}

// NewManager binds a manager to the unit's runtime configuration
func NewManager(base *zap.Logger, pool *FilePool, rt *config.Runtime) *Manager {
	m := &Manager{base: base, pool: pool, rt: rt}
	rt.Subscribe("log", m.Invalidate)
	return m
}

// Logger returns the unit's logger, building it on first use
func (m *Manager) Logger() *zap.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return m.current
	}

	path := m.rt.GetString("log.tenant_file", "")
	if path == "" {
		m.current = m.base
		return m.current
	}
	f, err := m.pool.get(path)
	if err != nil {
		m.base.Warn("Tenant log file unavailable, using base logger",
			zap.String("path", path), zap.Error(err))
		m.current = m.base
		return m.current
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig("")),
		zapcore.AddSync(f),
		parseLevel(m.rt.GetString("log.level", "info")),
	)
	m.current = m.base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	return m.current
}

// Invalidate drops the cached logger
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}
