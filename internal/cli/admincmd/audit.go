package admincmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuwa-agi/nuwa/internal/audit/chain"
)

// NewAudit returns `nuwactl audit`.
func NewAudit() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Audit log utilities"}
	verify := &cobra.Command{
		Use:   "verify <path>",
		Short: "Check that every record links to its predecessor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := chain.Verify(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records ok\n", n)
			return nil
		},
	}
	cmd.AddCommand(verify)
	return cmd
}
