package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/spf13/cobra"
)

// NewPricingCmd creates the pricing command
func NewPricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect the model price table",
	}

	var file string
	list := &cobra.Command{
		Use:   "list",
		Short: "List prices per 1M tokens",
		Long:  "List the built-in prices, overlaid with --file (or PRICING_FILE) when given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := usage.LoadPriceTable(file)
			if err != nil {
				return err
			}
			return writePrices(cmd.OutOrStdout(), usage.NewCostModel(table, nil).Prices())
		},
	}
	list.Flags().StringVar(&file, "file", "", "Price override file (defaults to PRICING_FILE)")
	list.PreRun = func(cmd *cobra.Command, args []string) {
		if file == "" {
			// config.Load would demand DATABASE_URL, which listing prices does not need
			file = os.Getenv("PRICING_FILE")
		}
	}

	cmd.AddCommand(list)
	return cmd
}

func writePrices(w io.Writer, entries []usage.PriceEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tINPUT/1M\tOUTPUT/1M")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Provider, e.Model, e.Input.String(), e.Output.String())
	}
	return tw.Flush()
}
