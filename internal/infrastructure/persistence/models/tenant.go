package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tenancy/backend/internal/domain/tenant"
	"gorm.io/gorm"
)

// TenantModel is the persistence model for the tenant registry
type TenantModel struct {
	AggregateModel
	PublicID          string         `gorm:"type:varchar(32);not null;uniqueIndex"`
	Identifier        string         `gorm:"type:varchar(255);not null;index"`
	Name              string         `gorm:"type:varchar(200);not null"`
	ParentID          *uuid.UUID     `gorm:"type:uuid;index"`
	Config            string         `gorm:"type:text;not null;default:'{}'"`
	IsActive          bool           `gorm:"not null;default:true;index"`
	IsInternal        bool           `gorm:"not null;default:false"`
	AllowPublicConfig bool           `gorm:"not null;default:false"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant. The parent
// chain is not attached.
func (m *TenantModel) ToDomain() (*tenant.Tenant, error) {
	cfg := tenant.Tree{}
	if m.Config != "" {
		if err := json.Unmarshal([]byte(m.Config), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config of tenant %s: %w", m.ID, err)
		}
	}

	t := &tenant.Tenant{
		PublicID:          m.PublicID,
		Identifier:        m.Identifier,
		Name:              m.Name,
		ParentID:          m.ParentID,
		Config:            cfg,
		IsActive:          m.IsActive,
		IsInternal:        m.IsInternal,
		AllowPublicConfig: m.AllowPublicConfig,
	}
	m.PopulateAggregateRoot(&t.BaseAggregateRoot)
	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		t.DeletedAt = &deletedAt
	}
	return t, nil
}

// FromDomain populates the persistence model from a domain Tenant
func (m *TenantModel) FromDomain(t *tenant.Tenant) error {
	cfg := t.Config
	if cfg == nil {
		cfg = tenant.Tree{}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config of tenant %s: %w", t.ID, err)
	}

	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.PublicID = t.PublicID
	m.Identifier = t.Identifier
	m.Name = t.Name
	m.ParentID = t.ParentID
	m.Config = string(data)
	m.IsActive = t.IsActive
	m.IsInternal = t.IsInternal
	m.AllowPublicConfig = t.AllowPublicConfig
	m.DeletedAt = gorm.DeletedAt{}
	if t.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *t.DeletedAt, Valid: true}
	}
	return nil
}

// TenantModelFromDomain creates a persistence model from a domain Tenant
func TenantModelFromDomain(t *tenant.Tenant) (*TenantModel, error) {
	m := &TenantModel{}
	if err := m.FromDomain(t); err != nil {
		return nil, err
	}
	return m, nil
}
