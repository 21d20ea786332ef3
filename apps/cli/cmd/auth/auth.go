package auth

import "github.com/spf13/cobra"

// Command groups authentication helpers (dev tokens, local session tokens).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication utilities",
		Long:  "Authentication utilities: unsigned dev tokens for AUTH_PROVIDER=dev and signed session tokens for AUTH_PROVIDER=local.",
	}

	cmd.AddCommand(devTokenCommand())
	cmd.AddCommand(sessionCommand())

	return cmd
}
