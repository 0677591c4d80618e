package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
	"github.com/tenancy/backend/internal/domain/tenant/tenanttest"
)

func run(t *testing.T, repo *tenanttest.Repository, args ...string) (string, error) {
	t.Helper()
	open := func(string) (*app, error) {
		return &app{tenants: tenancy.NewTenantService(repo, nil, nil, nil)}, nil
	}
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func createAcme(t *testing.T, repo *tenanttest.Repository) tenancy.TenantDTO {
	t.Helper()
	out, err := run(t, repo, "create",
		"--identifier", "shop.acme.com",
		"--name", "Acme",
		"--config", `{"app":{"url":"https://shop.acme.com","frontend_url":"https://app.acme.com"}}`,
	)
	require.NoError(t, err)
	var created tenancy.TenantDTO
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	return created
}

func TestCreateAndGet(t *testing.T) {
	repo := tenanttest.NewRepository()
	created := createAcme(t, repo)
	assert.Equal(t, "shop.acme.com", created.Identifier)

	out, err := run(t, repo, "get", "shop.acme.com")
	require.NoError(t, err)
	var got tenancy.TenantDTO
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestCreate_InvalidConfigListsKeys(t *testing.T) {
	repo := tenanttest.NewRepository()
	_, err := run(t, repo, "create", "--identifier", "shop.acme.com", "--name", "Acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "app.url")
}

func TestCreate_WithParent(t *testing.T) {
	repo := tenanttest.NewRepository()
	parent := createAcme(t, repo)

	out, err := run(t, repo, "create", "--identifier", "eu.acme.com", "--name", "Acme EU", "--parent", "shop.acme.com")
	require.NoError(t, err)
	var child tenancy.TenantDTO
	require.NoError(t, json.Unmarshal([]byte(out), &child))
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestSetConfigAndVisibility(t *testing.T) {
	repo := tenanttest.NewRepository()
	created := createAcme(t, repo)

	_, err := run(t, repo, "set-config", "shop.acme.com", "mail.port", "587")
	require.NoError(t, err)
	_, err = run(t, repo, "set-config", "shop.acme.com", "mail.host", "smtp.acme.com")
	require.NoError(t, err)
	_, err = run(t, repo, "set-visibility", created.ID.String(), "mail.host", "public")
	require.NoError(t, err)

	stored, err := repo.FindByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(587), stored.GetConfig("mail.port", nil))
	assert.Equal(t, map[string]any{"mail": map[string]any{"host": "smtp.acme.com"}}, stored.GetPublicConfig())

	_, err = run(t, repo, "set-config", "shop.acme.com", "mail.port", "--unset")
	require.NoError(t, err)
	stored, err = repo.FindByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasOwnConfig("mail.port"))

	_, err = run(t, repo, "set-config", "shop.acme.com", "mail.port")
	assert.Error(t, err)
	_, err = run(t, repo, "set-visibility", "shop.acme.com", "mail.host", "secret")
	assert.Error(t, err)
}

func TestLifecycle(t *testing.T) {
	repo := tenanttest.NewRepository()
	created := createAcme(t, repo)
	id := created.ID.String()

	_, err := run(t, repo, "deactivate", id)
	require.NoError(t, err)
	_, err = run(t, repo, "activate", id)
	require.NoError(t, err)

	out, err := run(t, repo, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted tenant")

	out, err = run(t, repo, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "shop.acme.com")

	_, err = run(t, repo, "restore", id)
	require.NoError(t, err)
	out, err = run(t, repo, "list", "--search", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "shop.acme.com")

	_, err = run(t, repo, "activate", "not-a-uuid")
	assert.Error(t, err)
}

func TestPipes(t *testing.T) {
	out, err := run(t, tenanttest.NewRepository(), "pipes")
	require.NoError(t, err)
	assert.Contains(t, out, "cache\n")
	assert.Contains(t, out, "session\n")
}
