package root

import (
	"context"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Palmyra tenancy admin CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "palmyra-tenancy",
	Short:         "Palmyra tenancy admin CLI",
	Long:          "Administrative utilities for the tenancy backend (schema bootstrap, tenants, users, dev and session tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI; ctx reaches every command through cmd.Context().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
