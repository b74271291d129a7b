package admincmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nuwa-agi/nuwa/internal/ports"
	usersgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/users"
)

// NewUser returns `nuwactl user`. It is the only way to create admin accounts.
func NewUser(env *Env) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Account administration"}
	var u ports.User
	var role, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Role = ports.Role(role)
			if !u.Role.Valid() {
				return fmt.Errorf("role must be admin, editor or viewer")
			}
			gdb, err := env.Open()
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := usersgorm.AutoMigrate(gdb); err != nil {
				return err
			}
			if err := usersgorm.New(gdb).Create(cmd.Context(), &u, password); err != nil {
				return err
			}
			slog.Info("user created", "id", u.ID, "username", u.Username, "role", role)
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&u.Username, "username", "", "login name")
	create.Flags().StringVar(&u.Email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&u.TeamID, "team", "default", "team id")
	create.Flags().StringVar(&role, "role", string(ports.RoleEditor), "admin|editor|viewer")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)
	return cmd
}
