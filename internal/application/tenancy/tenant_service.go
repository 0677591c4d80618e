package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/shared"
	"github.com/tenancy/backend/internal/domain/tenant"
	"go.uber.org/zap"
)

// TenantService handles tenant administration
type TenantService struct {
	repo      tenant.Repository
	spec      *tenant.ConfigSpec
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewTenantService creates a new tenant service. A nil spec uses
// tenant.DefaultConfigSpec.
func NewTenantService(
	repo tenant.Repository,
	spec *tenant.ConfigSpec,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *TenantService {
	if spec == nil {
		spec = tenant.DefaultConfigSpec()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{repo: repo, spec: spec, publisher: publisher, logger: logger}
}

// Create validates and persists a new tenant
func (s *TenantService) Create(ctx context.Context, input CreateTenantInput) (*TenantDTO, error) {
	s.logger.Info("Creating new tenant",
		zap.String("identifier", input.Identifier),
		zap.String("name", input.Name))

	if err := s.ensureIdentifierFree(ctx, input.Identifier, uuid.Nil); err != nil {
		return nil, err
	}

	opts := []tenant.Option{
		tenant.WithConfig(input.Config),
		tenant.WithInternal(input.IsInternal),
		tenant.WithPublicConfig(input.AllowPublicConfig),
	}
	if input.ParentID != nil {
		parent, err := s.repo.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tenant.WithParent(parent))
	}

	t, err := tenant.NewTenant(input.Identifier, input.Name, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.spec.Validate(t); err != nil {
		return nil, err
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant created successfully",
		zap.String("tenant_id", t.PublicID),
		zap.String("identifier", t.Identifier))
	return ToTenantDTO(t), nil
}

// Get retrieves a tenant by id, soft-deleted tenants included
func (s *TenantService) Get(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// GetByIdentifier retrieves an active tenant by identifier
func (s *TenantService) GetByIdentifier(ctx context.Context, identifier string) (*TenantDTO, error) {
	t, err := s.repo.FindActiveByIdentifier(ctx, tenant.NormalizeIdentifier(identifier))
	if err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// List retrieves a paginated list of tenants that are not deleted
func (s *TenantService) List(ctx context.Context, filter TenantFilter) (*TenantListResult, error) {
	sharedFilter := filter.ToSharedFilter()

	tenants, err := s.repo.FindAll(ctx, sharedFilter)
	if err != nil {
		s.logger.Error("Failed to list tenants", zap.Error(err))
		return nil, err
	}
	total, err := s.repo.Count(ctx, sharedFilter)
	if err != nil {
		s.logger.Error("Failed to count tenants", zap.Error(err))
		return nil, err
	}

	pageSize := sharedFilter.PageSize
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	dtos := make([]TenantDTO, len(tenants))
	for i, t := range tenants {
		dtos[i] = *ToTenantDTO(t)
	}
	return &TenantListResult{
		Tenants:    dtos,
		Total:      total,
		Page:       sharedFilter.Page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Update changes tenant attributes
func (s *TenantService) Update(ctx context.Context, input UpdateTenantInput) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := t.Update(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Identifier != nil && tenant.NormalizeIdentifier(*input.Identifier) != t.Identifier {
		if t.IsActive {
			if err := s.ensureIdentifierFree(ctx, *input.Identifier, t.ID); err != nil {
				return nil, err
			}
		}
		if _, err := t.ChangeIdentifier(*input.Identifier); err != nil {
			return nil, err
		}
	}
	if input.IsInternal != nil && *input.IsInternal != t.IsInternal {
		t.MarkInternal(*input.IsInternal)
	}
	if input.AllowPublicConfig != nil && *input.AllowPublicConfig != t.AllowPublicConfig {
		t.SetAllowPublicConfig(*input.AllowPublicConfig)
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// SetConfig sets key on the tenant's own configuration. A nil value clears
// the override. The resulting configuration must still pass validation.
func (s *TenantService) SetConfig(ctx context.Context, id uuid.UUID, key string, value any) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.SetConfig(key, value); err != nil {
		return nil, err
	}
	if err := s.spec.Validate(t); err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// SetVisibility annotates key with level
func (s *TenantService) SetVisibility(ctx context.Context, id uuid.UUID, key string, level tenant.Visibility) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.SetVisibility(key, level); err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// Activate makes a tenant resolvable again
func (s *TenantService) Activate(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureIdentifierFree(ctx, t.Identifier, t.ID); err != nil {
		return nil, err
	}
	if err := t.Activate(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// Deactivate stops a tenant from resolving
func (s *TenantService) Deactivate(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

// Delete soft-deletes a tenant
func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := t.SoftDelete(); err != nil {
		return err
	}
	if err := s.save(ctx, t); err != nil {
		return err
	}
	s.logger.Info("Tenant deleted", zap.String("tenant_id", t.PublicID))
	return nil
}

// Restore reverses Delete. It fails when another active tenant has taken
// the identifier in the meantime.
func (s *TenantService) Restore(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsActive {
		if err := s.ensureIdentifierFree(ctx, t.Identifier, t.ID); err != nil {
			return nil, err
		}
	}
	if err := t.Restore(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return ToTenantDTO(t), nil
}

func (s *TenantService) ensureIdentifierFree(ctx context.Context, identifier string, excludeID uuid.UUID) error {
	exists, err := s.repo.ExistsActiveByIdentifier(ctx, tenant.NormalizeIdentifier(identifier), excludeID)
	if err != nil {
		s.logger.Error("Failed to check identifier availability", zap.Error(err))
		return fmt.Errorf("failed to check identifier availability: %w", err)
	}
	if exists {
		return tenant.ErrIdentifierTaken
	}
	return nil
}

// save persists t and publishes its pending events. Publishing failures are
// logged; the change itself is already durable.
func (s *TenantService) save(ctx context.Context, t *tenant.Tenant) error {
	if err := s.repo.Save(ctx, t); err != nil {
		s.logger.Error("Failed to save tenant", zap.String("tenant_id", t.PublicID), zap.Error(err))
		var de *shared.DomainError
		if errors.As(err, &de) {
			return err
		}
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	events := t.GetDomainEvents()
	t.ClearDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish tenant events", zap.String("tenant_id", t.PublicID), zap.Error(err))
	}
	return nil
}
