package admincmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nuwa-agi/nuwa/internal/analytics/worker"
	gormrepo "github.com/nuwa-agi/nuwa/internal/repo/gorm"
)

// NewMigrate returns `nuwactl migrate`.
func NewMigrate(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the service and analytics tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := env.Open()
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := gormrepo.AutoMigrate(gdb); err != nil {
				return err
			}
			if err := worker.AutoMigrate(gdb); err != nil {
				return err
			}
			slog.Info("migration complete", "dialect", gdb.Dialector.Name())
			return nil
		},
	}
}
