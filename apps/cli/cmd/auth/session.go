package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
)

func sessionCommand() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
		role   string
		creds  platformauth.UserCredentials
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Sign an HS256 session token accepted by AUTH_PROVIDER=local",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := platformauth.ParseRole(role)
			if !ok {
				return fmt.Errorf("invalid role %q (use ADMIN, MANAGER or USER)", role)
			}
			creds.Role = parsed

			sessions, err := platformauth.NewSessions(secret, ttl)
			if err != nil {
				return err
			}
			token, expires, err := sessions.Issue(creds)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("SESSION_SECRET"), "signing secret (defaults to $SESSION_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&creds.ID, "user-id", "", "subject (identity uid)")
	cmd.Flags().StringVar(&creds.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&creds.Name, "name", "", "name claim")
	cmd.Flags().StringVar(&creds.TenantID, "tenant-id", "", "tenant_id claim")
	cmd.Flags().StringVar(&role, "role", "USER", "ADMIN, MANAGER or USER")
	cmd.Flags().BoolVar(&creds.PlatformAdmin, "platform-admin", false, "platformAdmin claim")
	cmd.Flags().BoolVar(&creds.EmailVerified, "email-verified", true, "email_verified claim")

	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}
