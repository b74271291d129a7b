package admincmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/internal/service/billing"
)

// NewPlans returns `nuwactl plans`.
func NewPlans(env *Env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Print the subscription price table",
		RunE: func(cmd *cobra.Command, args []string) error {
			currency := env.V.GetString("payment.currency")
			if currency == "" {
				currency = "usd"
			}
			plans := billing.NewService(nil, nil, nil, nil, nil, nil, payment.Config{Currency: currency}).Plans()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plans)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tPRICE\tCURRENCY")
			for _, p := range plans {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\n", p.Plan, p.Amount, p.Currency)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
