package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"bazaar/geoinv"
	"bazaar/models"
)

type ResolveOptions struct {
	*RootOptions
	Product string
	Variant string
	Pincode string
	City    string
	State   string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <snapshot>",
		Short: "Resolve a variant's price and stock for a location",
		Long: `Print the effective price, stock and discount of one product variant at
a delivery location. A pincode override beats a city override, which beats a
state override, which beats the variant's base values.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Product, "product", "", "product id (required)")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant id (required)")
	cmd.Flags().StringVar(&opts.Pincode, "pincode", "", "delivery pincode")
	cmd.Flags().StringVar(&opts.City, "city", "", "delivery city")
	cmd.Flags().StringVar(&opts.State, "state", "", "delivery state")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("variant")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, path string) error {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve", err)
	}
	st, _, err := snap.Store()
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve", err)
	}
	p, ok := st.Product(opts.Product)
	if !ok {
		return WrapExitError(ExitCommandError, "resolve", fmt.Errorf("product %s not found", opts.Product))
	}

	var addr *models.Address
	if opts.Pincode != "" || opts.City != "" || opts.State != "" {
		addr = &models.Address{Pincode: opts.Pincode, City: opts.City, State: opts.State}
	}
	res := geoinv.Resolve(&p, opts.Variant, addr)
	final := geoinv.FinalPrice(res)

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(w).Encode(Response{Status: "ok", Data: map[string]any{"resolution": res, "finalPrice": final}})
	}
	source := "base"
	if res.RuleID != "" {
		source = "rule " + res.RuleID
	}
	fmt.Fprintf(w, "price: %.2f\n", res.Price)
	fmt.Fprintf(w, "stock: %d\n", res.Stock)
	if res.Discount != nil {
		fmt.Fprintf(w, "discount: %g%%\n", *res.Discount)
	}
	fmt.Fprintf(w, "weight: %s\n", res.Weight)
	fmt.Fprintf(w, "final price: %.2f\n", final)
	fmt.Fprintf(w, "source: %s\n", source)
	return nil
}
