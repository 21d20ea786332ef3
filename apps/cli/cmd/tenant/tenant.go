package tenantcmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-tenancy/apps/cli/wire"
	"github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/requesttrace"
)

// Command groups tenant registry helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (create, list, delete, stats, reconcile-counts)",
	}
	wire.AddDatabaseFlags(cmd)

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(deleteCommand())
	cmd.AddCommand(statsCommand())
	cmd.AddCommand(reconcileCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		id       string
		name     string
		domain   string
		status   string
		maxUsers int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli-tenant-create"))
			svc, err := env.TenantService(ctx, service.DeleteOrphan)
			if err != nil {
				return err
			}

			t, err := svc.Create(ctx, service.CreateInput{
				ID:       id,
				Name:     name,
				Domain:   domain,
				Status:   service.Status(status),
				MaxUsers: &maxUsers,
			})
			if err != nil {
				return wrapTenantError("create tenant", err)
			}

			printTenantSummary(cmd.OutOrStdout(), t)
			return nil
		},
	}

	c.Flags().StringVar(&id, "id", "", "Tenant id (lowercase letters, digits and hyphens, 3-50 chars)")
	c.Flags().StringVar(&name, "name", "", "Display name")
	c.Flags().StringVar(&domain, "domain", "", "Primary domain, e.g. acme.example.com")
	c.Flags().StringVar(&status, "status", "", "active, inactive or trial (default active)")
	c.Flags().IntVar(&maxUsers, "max-users", 10, "User quota")

	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("domain")

	return c
}

func listCommand() *cobra.Command {
	var (
		status   string
		page     int
		pageSize int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			svc, err := env.TenantService(cmd.Context(), service.DeleteOrphan)
			if err != nil {
				return err
			}

			opts := service.ListOptions{Page: page, PageSize: pageSize}
			if status != "" {
				s := service.Status(status)
				if !s.IsValid() {
					return fmt.Errorf("invalid status %q", status)
				}
				opts.Status = &s
			}
			res, err := svc.List(cmd.Context(), opts)
			if err != nil {
				return wrapTenantError("list tenants", err)
			}
			if len(res.Tenants) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tenants found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDOMAIN\tSTATUS\tUSERS\tCREATED_AT")
			for _, t := range res.Tenants {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\n", t.ID, t.Name, t.Domain, t.Status, t.UserCount, t.MaxUsers, t.CreatedAt.UTC().Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d tenants)\n", res.Page, res.TotalPages, res.TotalItems)
			return nil
		},
	}

	c.Flags().StringVar(&status, "status", "", "Filter by status")
	c.Flags().IntVar(&page, "page", 1, "Page number")
	c.Flags().IntVar(&pageSize, "page-size", 50, "Page size")
	return c
}

func deleteCommand() *cobra.Command {
	var (
		id     string
		policy string
	)

	c := &cobra.Command{
		Use:   "delete",
		Short: "Delete a tenant (orphan keeps dependents, cascade removes them and their identities)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deletePolicy, err := service.ParseDeletePolicy(policy)
			if err != nil {
				return err
			}

			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli-tenant-delete"))
			svc, err := env.TenantService(ctx, deletePolicy)
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, id); err != nil {
				return wrapTenantError("delete tenant", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s deleted (policy %s).\n", id, deletePolicy)
			return nil
		},
	}

	c.Flags().StringVar(&id, "id", "", "Tenant id")
	c.Flags().StringVar(&policy, "policy", string(service.DeleteOrphan), "Dependent handling: orphan or cascade")
	_ = c.MarkFlagRequired("id")
	return c
}

func statsCommand() *cobra.Command {
	var id string

	c := &cobra.Command{
		Use:   "stats",
		Short: "Show derived statistics for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			svc, err := env.TenantService(cmd.Context(), service.DeleteOrphan)
			if err != nil {
				return err
			}
			stats, err := svc.Stats(cmd.Context(), id)
			if err != nil {
				return wrapTenantError("tenant stats", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Users: %d\nFeatures: %d (%d enabled)\nDomains: %d (%d verified)\nBranding: %t\n",
				stats.TotalUsers, stats.TotalFeatures, stats.EnabledFeatures, stats.TotalDomains, stats.VerifiedDomains, stats.HasBranding)
			return nil
		},
	}

	c.Flags().StringVar(&id, "id", "", "Tenant id")
	_ = c.MarkFlagRequired("id")
	return c
}

func reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-counts",
		Short: "Recompute tenants.user_count from the profiles table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			svc, err := env.TenantService(cmd.Context(), service.DeleteOrphan)
			if err != nil {
				return err
			}
			n, err := svc.ReconcileUserCounts(cmd.Context())
			if err != nil {
				return wrapTenantError("reconcile user counts", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Corrected %d tenant(s).\n", n)
			return nil
		},
	}
}

func wrapTenantError(action string, err error) error {
	var validationErr *apperr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return fmt.Errorf("%s validation failed:\n%s", action, formatFieldErrors(validationErr.Fields))
	case errors.Is(err, service.ErrConflict):
		return fmt.Errorf("%s conflict: tenant id already exists", action)
	case errors.Is(err, service.ErrNotFound):
		return fmt.Errorf("%s failed: tenant not found", action)
	default:
		return fmt.Errorf("%s failed: %w", action, err)
	}
}

func formatFieldErrors(fields apperr.FieldErrors) string {
	keys := make([]string, 0, len(fields))
	for field := range fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, field := range keys {
		for _, msg := range fields[field] {
			fmt.Fprintf(&b, "- %s: %s\n", field, msg)
		}
	}
	return strings.TrimSpace(b.String())
}

func printTenantSummary(out io.Writer, t service.Tenant) {
	fmt.Fprintf(out, "ID: %s\nName: %s\nDomain: %s\nStatus: %s\nUsers: %d/%d\n", t.ID, t.Name, t.Domain, t.Status, t.UserCount, t.MaxUsers)
}
