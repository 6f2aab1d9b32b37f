package cli

import (
	"github.com/spf13/cobra"

	"bazaar/integrity"
)

type CleanupOptions struct {
	*RootOptions
	Out   string
	Check bool
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup <snapshot>",
		Short: "Clear stale checkout state and repair a snapshot",
		Long: `Load a snapshot (repairing it on the way in), clear every session's
pending checkout total and selected product, then run the integrity repair.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the cleaned snapshot to this file")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "exit with status 1 when anything was fixed")

	return cmd
}

func runCleanup(cmd *cobra.Command, opts *CleanupOptions, path string) error {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup", err)
	}
	st, loadLog, err := snap.Store()
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup", err)
	}
	lines, err := st.SafeCleanup()
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup", err)
	}

	cleaned := st.Snapshot()
	if opts.Out != "" {
		if err := WriteSnapshot(opts.Out, cleaned); err != nil {
			return WrapExitError(ExitCommandError, "cleanup", err)
		}
	}
	summary := map[string]int{
		"users":    len(cleaned.Users),
		"products": len(cleaned.Products),
		"orders":   len(cleaned.Orders),
		"sessions": len(cleaned.Sessions),
	}
	return finish(cmd, opts.Format, opts.Check, merge(loadLog, lines), summary)
}

// merge joins pass logs, keeping the healthy line only when no pass fixed
// anything.
func merge(logs ...[]string) []string {
	var out []string
	for _, l := range logs {
		for _, line := range l {
			if line != integrity.HealthyMessage {
				out = append(out, line)
			}
		}
	}
	if len(out) == 0 {
		return []string{integrity.HealthyMessage}
	}
	return out
}
