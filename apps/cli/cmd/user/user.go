package usercmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-tenancy/apps/cli/wire"
	"github.com/zenGate-Global/palmyra-tenancy/domains/users/be/service"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/requesttrace"
)

// operator is the actor CLI commands run as.
var operator = &platformauth.UserCredentials{ID: "cli", Role: platformauth.RoleAdmin, PlatformAdmin: true}

// Command groups tenant user helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Tenant user utilities (create, list, delete)",
	}
	wire.AddDatabaseFlags(cmd)

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(deleteCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var input service.CreateUserInput

	c := &cobra.Command{
		Use:   "create",
		Short: "Create an identity and its profile in a tenant (quota enforced)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli-user-create"))
			svc, err := env.UserService(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Provision(ctx, operator, input)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created identity %s", res.AuthID)
			if res.Profile != nil {
				fmt.Fprintf(cmd.OutOrStdout(), " with profile %s", res.Profile.ID)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	c.Flags().StringVar(&input.TenantID, "tenant-id", "", "Tenant id")
	c.Flags().StringVar(&input.Email, "email", "", "Email")
	c.Flags().StringVar(&input.Password, "password", "", "Password (min 6 chars)")
	c.Flags().StringVar(&input.Name, "name", "", "Display name")
	c.Flags().StringVar(&input.Role, "role", "USER", "ADMIN, MANAGER or USER")

	_ = c.MarkFlagRequired("tenant-id")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	_ = c.MarkFlagRequired("name")
	return c
}

func listCommand() *cobra.Command {
	var tenantID string

	c := &cobra.Command{
		Use:   "list",
		Short: "List the profiles of a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			svc, err := env.UserService(cmd.Context())
			if err != nil {
				return err
			}
			profiles, err := svc.List(cmd.Context(), operator, tenantID)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tAUTH_ID")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Email, p.Name, p.Role, p.AuthID)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&tenantID, "tenant-id", "", "Tenant id")
	_ = c.MarkFlagRequired("tenant-id")
	return c
}

func deleteCommand() *cobra.Command {
	var profileID string

	c := &cobra.Command{
		Use:   "delete",
		Short: "Delete a profile and, best-effort, its identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(profileID)
			if err != nil {
				return fmt.Errorf("profile-id must be a valid UUID: %w", err)
			}

			env, err := wire.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli-user-delete"))
			svc, err := env.UserService(ctx)
			if err != nil {
				return err
			}
			if err := svc.Remove(ctx, operator, id); err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %s deleted.\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&profileID, "profile-id", "", "Profile UUID")
	_ = c.MarkFlagRequired("profile-id")
	return c
}
