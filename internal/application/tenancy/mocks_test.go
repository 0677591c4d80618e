package tenancy

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/infrastructure/cache"
)

// MockTenantRepository is a mock implementation of tenant.Repository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindActiveByIdentifier(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindActive(ctx context.Context) ([]*tenant.Tenant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*tenant.Tenant, error) {
	args := m.Called(ctx, parentID)
	return args.Get(0).([]*tenant.Tenant), args.Error(1)
}

func (m *MockTenantRepository) ExistsActiveByIdentifier(ctx context.Context, identifier string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, identifier, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTenantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func newTestTenant(t *testing.T, identifier string, opts ...tenant.Option) *tenant.Tenant {
	t.Helper()
	tn, err := tenant.NewTenant(identifier, identifier, opts...)
	require.NoError(t, err)
	tn.ClearDomainEvents()
	return tn
}

func newTestResolutionCache(t *testing.T) *cache.ResolutionCache {
	t.Helper()
	store, err := cache.NewRistrettoStore(1 << 20)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return cache.NewResolutionCache(store, nil)
}
