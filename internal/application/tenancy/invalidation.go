package tenancy

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const maxInvalidationDepth = 32

// CacheInvalidator evicts cached resolutions when a tenant changes. Children
// inherit configuration, so their entries are evicted as well.
type CacheInvalidator struct {
	lookup *TenantLookup
	repo   tenant.Repository
	config *ConfigService
	logger *zap.Logger
}

// NewCacheInvalidator creates the handler. config may be nil.
func NewCacheInvalidator(lookup *TenantLookup, repo tenant.Repository, config *ConfigService, logger *zap.Logger) *CacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidator{lookup: lookup, repo: repo, config: config, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *CacheInvalidator) EventTypes() []string {
	return []string{
		tenant.EventTypeUpdated,
		tenant.EventTypeConfigChanged,
		tenant.EventTypeDeleted,
		tenant.EventTypeRestored,
	}
}

// Handle implements shared.EventHandler
func (h *CacheInvalidator) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(tenant.ChangedEvent)
	if !ok {
		return nil
	}

	identifiers := []string{changed.TenantIdentifier()}
	if prev, ok := event.(interface{ PreviousIdentifier() string }); ok && prev.PreviousIdentifier() != "" {
		identifiers = append(identifiers, prev.PreviousIdentifier())
	}
	descendants, err := h.descendants(ctx, event.AggregateID())
	if err != nil {
		h.logger.Warn("Failed to list descendants for cache invalidation",
			zap.String("tenant_id", event.AggregateID().String()),
			zap.Error(err))
	}
	identifiers = append(identifiers, descendants...)

	err = h.lookup.Forget(ctx, identifiers...)
	if h.config != nil {
		err = multierr.Append(err, h.config.Forget(ctx))
	}
	if err != nil {
		return err
	}
	h.logger.Debug("Tenant cache invalidated",
		zap.String("event_type", event.EventType()),
		zap.Strings("identifiers", identifiers))
	return nil
}

func (h *CacheInvalidator) descendants(ctx context.Context, root uuid.UUID) ([]string, error) {
	var out []string
	seen := map[uuid.UUID]bool{root: true}
	level := []uuid.UUID{root}
	for depth := 0; depth < maxInvalidationDepth && len(level) > 0; depth++ {
		var next []uuid.UUID
		for _, id := range level {
			children, err := h.repo.FindChildren(ctx, id)
			if err != nil {
				return out, err
			}
			for _, child := range children {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				out = append(out, child.Identifier)
				next = append(next, child.ID)
			}
		}
		level = next
	}
	return out, nil
}
