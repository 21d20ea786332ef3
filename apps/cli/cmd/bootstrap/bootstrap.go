package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-tenancy/apps/cli/wire"
	tenantsservice "github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
	usersservice "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/service"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/requesttrace"
)

// Notes/constraints:
// - Every step is check-or-create, so bootstrap can be re-run safely.
// - The platform tenant is the operator tenant; its ADMINs are platform admins
//   when the API runs with the same PLATFORM_ADMIN_TENANT.

// Command groups bootstrap helpers (schema, platform tenant and admin).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (schema, platform tenant, admin user)",
	}
	wire.AddDatabaseFlags(cmd)

	cmd.AddCommand(schemaCommand())
	cmd.AddCommand(platformCommand())
	return cmd
}

func schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Apply the embedded DDL (tables, indexes, user counter functions)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := persistence.ApplySchema(cmd.Context(), env.Pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied.")
			return nil
		},
	}
}

func platformCommand() *cobra.Command {
	var (
		tenantID      string
		tenantName    string
		tenantDomain  string
		maxUsers      int
		adminEmail    string
		adminPassword string
		adminName     string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Apply the schema, then ensure the platform tenant and its first admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli-bootstrap-platform"))
			if err := persistence.ApplySchema(ctx, env.Pool); err != nil {
				return err
			}

			tenants, err := env.TenantService(ctx, tenantsservice.DeleteOrphan)
			if err != nil {
				return err
			}
			t, err := ensureTenant(ctx, tenants, tenantsservice.CreateInput{
				ID:       tenantID,
				Name:     tenantName,
				Domain:   tenantDomain,
				MaxUsers: &maxUsers,
			})
			if err != nil {
				return err
			}

			users, err := env.UserService(ctx)
			if err != nil {
				return err
			}
			profile, err := ensureAdminUser(ctx, users, t.ID, adminEmail, adminPassword, adminName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete. Tenant: %s | Admin user: %s (%s)\n", t.ID, profile.Email, profile.AuthID)
			return nil
		},
	}

	c.Flags().StringVar(&tenantID, "tenant-id", "platform", "Platform tenant id (match PLATFORM_ADMIN_TENANT)")
	c.Flags().StringVar(&tenantName, "tenant-name", "Platform", "Platform tenant display name")
	c.Flags().StringVar(&tenantDomain, "tenant-domain", "platform.localhost.dev", "Platform tenant domain")
	c.Flags().IntVar(&maxUsers, "max-users", 100, "Platform tenant user quota")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Initial admin email")
	c.Flags().StringVar(&adminPassword, "admin-password", "", "Initial admin password (min 6 chars)")
	c.Flags().StringVar(&adminName, "admin-name", "", "Initial admin display name")

	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-password")
	_ = c.MarkFlagRequired("admin-name")

	return c
}

func ensureTenant(ctx context.Context, svc *tenantsservice.Service, input tenantsservice.CreateInput) (tenantsservice.Tenant, error) {
	t, err := svc.Get(ctx, input.ID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, tenantsservice.ErrNotFound) {
		return tenantsservice.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	t, err = svc.Create(ctx, input)
	if err != nil {
		return tenantsservice.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

// ensureAdminUser provisions the admin through the same path as the API, acting
// as a platform admin.
func ensureAdminUser(ctx context.Context, svc *usersservice.Service, tenantID, email, password, name string) (usersservice.Profile, error) {
	actor := &platformauth.UserCredentials{ID: "cli-bootstrap", Role: platformauth.RoleAdmin, PlatformAdmin: true}

	existing, err := svc.List(ctx, actor, tenantID)
	if err != nil {
		return usersservice.Profile{}, fmt.Errorf("lookup admin user: %w", err)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Email, strings.TrimSpace(email)) {
			return p, nil
		}
	}

	res, err := svc.Provision(ctx, actor, usersservice.CreateUserInput{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     string(platformauth.RoleAdmin),
		TenantID: tenantID,
	})
	if err != nil {
		return usersservice.Profile{}, fmt.Errorf("create admin user: %w", err)
	}
	if res.Profile == nil {
		return usersservice.Profile{}, fmt.Errorf("create admin user: profile for %s not materialized", res.AuthID)
	}
	return *res.Profile, nil
}
