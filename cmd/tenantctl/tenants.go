package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/domain/tenant"
)

type appRunner func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func tenantCommands(withApp appRunner) []*cobra.Command {
	return []*cobra.Command{
		newCreateCmd(withApp),
		newListCmd(withApp),
		{
			Use:   "get <id|identifier>",
			Short: "Show one tenant",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				t, err := findTenant(cmd.Context(), a.tenants, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), t)
			}),
		},
		newSetConfigCmd(withApp),
		{
			Use:   "set-visibility <id|identifier> <key> <public|protected|private>",
			Short: "Annotate a configuration key with a visibility level",
			Args:  cobra.ExactArgs(3),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				level, err := parseLevel(args[2])
				if err != nil {
					return err
				}
				return withTenantID(cmd, a, args[0], func(ctx context.Context, id uuid.UUID) (*tenancy.TenantDTO, error) {
					return a.tenants.SetVisibility(ctx, id, args[1], level)
				})
			}),
		},
		lifecycleCmd(withApp, "activate", "Make a tenant resolvable", func(a *app) func(context.Context, uuid.UUID) (*tenancy.TenantDTO, error) {
			return a.tenants.Activate
		}),
		lifecycleCmd(withApp, "deactivate", "Stop a tenant from resolving", func(a *app) func(context.Context, uuid.UUID) (*tenancy.TenantDTO, error) {
			return a.tenants.Deactivate
		}),
		lifecycleCmd(withApp, "restore", "Restore a soft-deleted tenant", func(a *app) func(context.Context, uuid.UUID) (*tenancy.TenantDTO, error) {
			return a.tenants.Restore
		}),
		{
			Use:   "delete <id>",
			Short: "Soft-delete a tenant",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid tenant id %q", args[0])
				}
				if err := a.tenants.Delete(cmd.Context(), id); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted tenant %s\n", id)
				return err
			}),
		},
	}
}

func newCreateCmd(withApp appRunner) *cobra.Command {
	var (
		input      tenancy.CreateTenantInput
		parent     string
		configJSON string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant",
		Long: `Create a tenant.

Examples:
  tenantctl create --identifier shop.acme.com --name "Acme" \
    --config '{"app":{"url":"https://shop.acme.com","frontend_url":"https://app.acme.com"}}'

  # Inherit configuration from an existing tenant
  tenantctl create --identifier eu.acme.com --name "Acme EU" --parent shop.acme.com`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if configJSON != "" {
				if err := json.Unmarshal([]byte(configJSON), &input.Config); err != nil {
					return fmt.Errorf("invalid --config: %w", err)
				}
			}
			if parent != "" {
				p, err := findTenant(cmd.Context(), a.tenants, parent)
				if err != nil {
					return fmt.Errorf("parent %q: %w", parent, err)
				}
				input.ParentID = &p.ID
			}
			t, err := a.tenants.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), t)
		}),
	}
	cmd.Flags().StringVar(&input.Identifier, "identifier", "", "Resolution identifier (domain, subdomain or slug)")
	cmd.Flags().StringVar(&input.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent tenant id or identifier")
	cmd.Flags().StringVar(&configJSON, "config", "", "Initial configuration as JSON")
	cmd.Flags().BoolVar(&input.IsInternal, "internal", false, "Mark the tenant internal")
	cmd.Flags().BoolVar(&input.AllowPublicConfig, "public-config", false, "Allow the public configuration endpoint")
	_ = cmd.MarkFlagRequired("identifier")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCmd(withApp appRunner) *cobra.Command {
	var (
		filter tenancy.TenantFilter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			result, err := a.tenants.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tIDENTIFIER\tNAME\tACTIVE\tINTERNAL")
			for _, t := range result.Tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", t.ID, t.Identifier, t.Name, t.IsActive, t.IsInternal)
			}
			fmt.Fprintf(w, "\n%d of %d tenants (page %d/%d)\n", len(result.Tenants), result.Total, result.Page, result.TotalPages)
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&filter.Keyword, "search", "", "Identifier or name contains")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 20, "Page size")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newSetConfigCmd(withApp appRunner) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "set-config <id|identifier> <key> [value]",
		Short: "Set or clear one configuration key",
		Long: `Set one configuration key on a tenant. The value is parsed as JSON and
falls back to a plain string, so 587, true and "587" all work.

Examples:
  tenantctl set-config shop.acme.com mail.host smtp.acme.com
  tenantctl set-config shop.acme.com mail.port 587
  tenantctl set-config shop.acme.com mail.port --unset`,
		Args: cobra.RangeArgs(2, 3),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			var value any
			switch {
			case unset:
				if len(args) == 3 {
					return fmt.Errorf("--unset takes no value")
				}
			case len(args) == 3:
				value = parseValue(args[2])
			default:
				return fmt.Errorf("a value or --unset is required")
			}
			return withTenantID(cmd, a, args[0], func(ctx context.Context, id uuid.UUID) (*tenancy.TenantDTO, error) {
				return a.tenants.SetConfig(ctx, id, args[1], value)
			})
		}),
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "Clear the tenant's own value so the key inherits again")
	return cmd
}

func lifecycleCmd(withApp appRunner, name, short string, op func(a *app) func(context.Context, uuid.UUID) (*tenancy.TenantDTO, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id %q", args[0])
			}
			t, err := op(a)(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), t)
		}),
	}
}

func withTenantID(cmd *cobra.Command, a *app, ref string, fn func(ctx context.Context, id uuid.UUID) (*tenancy.TenantDTO, error)) error {
	t, err := findTenant(cmd.Context(), a.tenants, ref)
	if err != nil {
		return err
	}
	updated, err := fn(cmd.Context(), t.ID)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), updated)
}

// findTenant accepts a tenant id or the identifier of an active tenant
func findTenant(ctx context.Context, svc *tenancy.TenantService, ref string) (*tenancy.TenantDTO, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return svc.Get(ctx, id)
	}
	return svc.GetByIdentifier(ctx, ref)
}

func parseLevel(s string) (tenant.Visibility, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PUBLIC", "PROTECTED", "PRIVATE":
		return tenant.ParseVisibility(s), nil
	}
	return tenant.VisibilityPrivate, fmt.Errorf("unknown visibility %q (want public, protected or private)", s)
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
