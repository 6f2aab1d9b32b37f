package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bazaar/config"
	"bazaar/db"
	"bazaar/integrity"
)

// DiagnoseOptions holds flags for the diagnose command.
type DiagnoseOptions struct {
	*RootOptions
	Out   string // write the repaired snapshot here
	Mongo bool   // repair the configured database instead of a file
	Check bool   // exit non-zero when anything was fixed
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagnoseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diagnose [snapshot]",
		Short: "Scan and repair marketplace data",
		Long: `Run the security and content scan followed by the integrity repair over
a snapshot file, or over the configured MongoDB with --mongo.

Injected text is sanitized, products with negative prices or stock and
orders of missing users are deleted, and every other fix the repair pass
knows is applied. One log line is printed per fix.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the repaired snapshot to this file")
	cmd.Flags().BoolVar(&opts.Mongo, "mongo", false, "repair the configured MongoDB collections in place")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "exit with status 1 when anything was fixed")

	return cmd
}

func runDiagnose(cmd *cobra.Command, opts *DiagnoseOptions, args []string) error {
	if opts.Mongo {
		return diagnoseMongo(cmd, opts)
	}
	if len(args) != 1 {
		return WrapExitError(ExitCommandError, "diagnose", fmt.Errorf("a snapshot file or --mongo is required"))
	}

	snap, err := ReadSnapshot(args[0])
	if err != nil {
		return WrapExitError(ExitCommandError, "diagnose", err)
	}
	res := integrity.DiagnoseAndFix(snap.Users, snap.Products, snap.Orders)

	if opts.Out != "" {
		out := map[string]any{"users": res.Users, "products": res.Products, "orders": res.Orders}
		if len(snap.Sessions) > 0 {
			out["sessions"] = snap.Sessions
		}
		if err := WriteSnapshot(opts.Out, out); err != nil {
			return WrapExitError(ExitCommandError, "diagnose", err)
		}
	}
	return finish(cmd, opts.Format, opts.Check, res.Log, counts(res))
}

func diagnoseMongo(cmd *cobra.Command, opts *DiagnoseOptions) error {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if _, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB); err != nil {
		return WrapExitError(ExitCommandError, "diagnose", err)
	}
	defer db.Disconnect(context.Background())

	colls := db.Bound()
	users, products, orders, err := colls.Load(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "diagnose", err)
	}
	res := integrity.DiagnoseAndFix(users, products, orders)
	if !res.Healthy() {
		if err := colls.Replace(ctx, res.Users, res.Products, res.Orders); err != nil {
			return WrapExitError(ExitCommandError, "diagnose", err)
		}
	}
	return finish(cmd, opts.Format, opts.Check, res.Log, counts(res))
}

func counts(res integrity.Result) map[string]int {
	return map[string]int{"users": len(res.Users), "products": len(res.Products), "orders": len(res.Orders)}
}

// finish prints a pass result and maps it to an exit status.
func finish(cmd *cobra.Command, format string, check bool, lines []string, summary map[string]int) error {
	if err := printLog(cmd.OutOrStdout(), format, lines, summary); err != nil {
		return err
	}
	if check && !(integrity.Result{Log: lines}).Healthy() {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d issue(s) fixed", len(lines))}
	}
	return nil
}
