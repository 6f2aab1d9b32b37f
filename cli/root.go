// Package cli is the bazaar command line: the HTTP server plus offline
// integrity, routing and pricing tools that work on snapshot files.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"bazaar/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ServeFunc runs the HTTP server until ctx is cancelled or a signal arrives.
type ServeFunc func(ctx context.Context, cfg config.Config) error

// NewRootCommand creates the root command. serve backs the serve subcommand.
func NewRootCommand(serve ServeFunc) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bazaar",
		Short: "Marketplace consistency core",
		Long:  "Geo-pricing, cart reconciliation, data integrity and delivery routing for the bazaar marketplace.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts, serve))
	cmd.AddCommand(NewDiagnoseCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewRouteCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(serve ServeFunc) int {
	cmd := NewRootCommand(serve)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
