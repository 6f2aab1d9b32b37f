package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bazaar/config"
)

type ServeOptions struct {
	*RootOptions
	Port    string
	Backend string
}

// NewServeCommand creates the serve command. Flags override the environment.
func NewServeCommand(rootOpts *RootOptions, serve ServeFunc) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API with the maintenance scheduler, the crash governors and
the live notice hub. Settings come from .env and the environment; see
config.FromEnv for the recognised variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serve == nil {
				return fmt.Errorf("serve is not available in this build")
			}
			cfg := config.Load()
			if opts.Port != "" {
				cfg.Port = config.Port(opts.Port)
			}
			switch opts.Backend {
			case "":
			case config.BackendMemory, config.BackendRedis, config.BackendMongo:
				cfg.StoreBackend = opts.Backend
			default:
				return WrapExitError(ExitCommandError, "serve", fmt.Errorf("unknown backend %q", opts.Backend))
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "store backend: memory, redis or mongo (overrides STORE_BACKEND)")

	return cmd
}
