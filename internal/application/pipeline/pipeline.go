package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Factory builds a fresh pipe
type Factory func() Pipe

// Registry maps pipe names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in pipes
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(PipeCore, NewCorePipe)
	r.Register(PipeDatabase, NewDatabasePipe)
	r.Register(PipeRedis, NewRedisPipe)
	r.Register(PipeCache, NewCachePipe)
	r.Register(PipeSession, NewSessionPipe)
	r.Register(PipeMail, NewMailPipe)
	r.Register(PipeFilesystem, NewFilesystemPipe)
	r.Register(PipeLogging, NewLoggingPipe)
	r.Register(PipeQueue, NewQueuePipe)
	return r
}

// Register adds or replaces the factory for name
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named pipes in order. Names listed in critical are
// wrapped with MarkCritical.
func (r *Registry) Build(names []string, critical []string) ([]Pipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	crit := make(map[string]bool, len(critical))
	for _, n := range critical {
		crit[strings.TrimSpace(n)] = true
	}
	pipes := make([]Pipe, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		f, ok := r.factories[n]
		if !ok {
			return nil, fmt.Errorf("unknown configuration pipe %q", n)
		}
		p := f()
		if crit[n] {
			p = MarkCritical(p)
		}
		pipes = append(pipes, p)
	}
	return pipes, nil
}

// PipeError is the failure of a single pipe
type PipeError struct {
	Pipe     string
	Critical bool
	Err      error
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("pipe %s: %v", e.Pipe, e.Err)
}

func (e *PipeError) Unwrap() error { return e.Err }

// Result is returned by Run when at least one pipe failed. The pipes that
// succeeded have already been applied unless Aborted is set.
type Result struct {
	Failures []*PipeError
	Aborted  bool
}

func (r *Result) Error() string {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	msg := multierr.Combine(errs...).Error()
	if r.Aborted {
		return "configuration pipeline aborted: " + msg
	}
	return "configuration pipeline: " + msg
}

// Unwrap exposes the individual pipe failures to errors.Is and errors.As
func (r *Result) Unwrap() []error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errs
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithPublisher publishes a PipeFailed event for every failed pipe
func WithPublisher(p shared.EventPublisher) Option {
	return func(pl *Pipeline) {
		if p != nil {
			pl.publisher = p
		}
	}
}

// WithMetrics records pipeline duration and pipe failures
func WithMetrics(m *telemetry.TenancyMetrics) Option {
	return func(pl *Pipeline) {
		if m != nil {
			pl.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// Pipeline applies tenant configuration to a runtime
type Pipeline struct {
	pipes     []Pipe
	publisher shared.EventPublisher
	metrics   *telemetry.TenancyMetrics
	logger    *zap.Logger
}

// New creates a pipeline running pipes in order
func New(pipes []Pipe, opts ...Option) *Pipeline {
	pl := &Pipeline{
		pipes:     pipes,
		publisher: shared.NopPublisher{},
		metrics:   telemetry.NopTenancyMetrics(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Pipes returns the pipe names in run order
func (pl *Pipeline) Pipes() []string {
	names := make([]string, len(pl.pipes))
	for i, p := range pl.pipes {
		names[i] = p.Name()
	}
	return names
}

// Run resets cfg to its baseline and applies every pipe for t. A failing
// pipe is logged and skipped; a failing critical pipe stops the run. The
// returned error is a *Result when any pipe failed.
func (pl *Pipeline) Run(ctx context.Context, t *tenant.Tenant, cfg *config.Runtime) error {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "tenancy.pipeline",
		attribute.String("tenancy.tenant", t.PublicID),
	)
	defer span.End()

	cfg.Reset()

	var result Result
	for _, p := range pl.pipes {
		err := pl.apply(ctx, p, t, cfg)
		if err == nil {
			continue
		}
		critical := isCritical(p)
		result.Failures = append(result.Failures, &PipeError{Pipe: p.Name(), Critical: critical, Err: err})
		pl.metrics.RecordPipeFailure(ctx, p.Name())
		logger.WithLogger(ctx, pl.logger).Warn("Configuration pipe failed",
			zap.String("pipe", p.Name()),
			zap.String("tenant", t.PublicID),
			zap.Bool("critical", critical),
			zap.Error(err),
		)
		if pubErr := pl.publisher.Publish(ctx, tenant.NewPipeFailedEvent(t, p.Name(), err, critical)); pubErr != nil {
			logger.WithLogger(ctx, pl.logger).Error("Failed to publish pipe failure", zap.Error(pubErr))
		}
		if critical {
			result.Aborted = true
			break
		}
	}

	pl.metrics.RecordPipeline(ctx, time.Since(start), t.PublicID)
	if len(result.Failures) == 0 {
		return nil
	}
	telemetry.RecordError(span, &result)
	return &result
}

func (pl *Pipeline) apply(ctx context.Context, p Pipe, t *tenant.Tenant, cfg *config.Runtime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Apply(ctx, t, cfg)
}
