package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bazaar/dispatch"
	"bazaar/models"
)

type RouteOptions struct {
	*RootOptions
	Agent string // only this agent's active orders
	Sheet string // write the PDF route sheet here
}

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RouteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "route <orders>",
		Short: "Sequence deliveries by nearest neighbour",
		Long: `Read the orders of a snapshot file and print them in delivery order,
starting at the first order and always driving to the nearest remaining
stop. Orders without coordinates get a stable synthetic point.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Agent, "agent", "", "only route the active orders assigned to this agent")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "write a PDF route sheet to this file")

	return cmd
}

func runRoute(cmd *cobra.Command, opts *RouteOptions, path string) error {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "route", err)
	}
	var orders []models.Order
	if err := viaJSON(snap.Orders, &orders); err != nil {
		return WrapExitError(ExitCommandError, "route", fmt.Errorf("decode orders: %w", err))
	}
	if opts.Agent != "" {
		orders = forAgent(orders, opts.Agent)
	}

	route := dispatch.NewRoute(orders)
	if opts.Sheet != "" {
		agent := opts.Agent
		if agent == "" {
			agent = "unassigned"
		}
		pdf, err := dispatch.RouteSheet(agent, route.Orders, time.Now())
		if err != nil {
			return WrapExitError(ExitCommandError, "route", err)
		}
		if err := os.WriteFile(opts.Sheet, pdf, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "route", err)
		}
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(w).Encode(Response{Status: "ok", Data: route})
	}
	for _, s := range route.Stops {
		fmt.Fprintf(w, "%d. %s (%.4f, %.4f) +%.2f km\n", s.Seq, s.OrderID, s.Point.Lat, s.Point.Lng, s.Leg)
	}
	fmt.Fprintf(w, "Total: %.2f km\n", route.TotalKm)
	return nil
}

func forAgent(orders []models.Order, agentID string) []models.Order {
	var out []models.Order
	for _, o := range orders {
		if o.DeliveryAgentID == agentID && o.Status.Active() {
			out = append(out, o)
		}
	}
	return out
}
