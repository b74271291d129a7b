package admincmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuwa-agi/nuwa/internal/auth/token"
	"github.com/nuwa-agi/nuwa/internal/ports"
)

// NewToken returns `nuwactl token`.
func NewToken(env *Env) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Credential utilities"}
	var id ports.Identity
	var role string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a credential for an identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := env.Secret()
			if err != nil {
				return err
			}
			id.Role = ports.Role(role)
			if !id.Role.Valid() {
				return fmt.Errorf("role must be admin, editor or viewer")
			}
			if id.Handle == "" {
				id.Handle = id.PrincipalID
			}
			tok, err := token.NewManager(secret).Sign(id, ttl)
			if err != nil {
				return err
			}
			slog.Info("token issued", "sub", id.PrincipalID, "team", id.TeamID, "role", role, "ttl", ttl)
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().StringVar(&id.PrincipalID, "sub", "", "principal id")
	issue.Flags().StringVar(&id.Handle, "handle", "", "display handle (defaults to --sub)")
	issue.Flags().StringVar(&id.TeamID, "team", "", "team id")
	issue.Flags().StringVar(&role, "role", string(ports.RoleViewer), "admin|editor|viewer")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("sub")

	verify := &cobra.Command{
		Use:   "verify <token>",
		Short: "Decode and check a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := env.Secret()
			if err != nil {
				return err
			}
			id, err := token.NewManager(secret).Verify(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sub=%s handle=%s team=%s role=%s\n", id.PrincipalID, id.Handle, id.TeamID, id.Role)
			return nil
		},
	}
	cmd.AddCommand(issue, verify)
	return cmd
}
