package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuwa-agi/nuwa/internal/cli/admincmd"
	common "github.com/nuwa-agi/nuwa/internal/cli/common"
)

func main() {
	env := &admincmd.Env{}
	var cfgFile string
	var includes []string
	root := &cobra.Command{
		Use:           "nuwactl",
		Short:         "NUWA administration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := common.LoadWithIncludes(cfgFile, includes)
			if err != nil {
				return err
			}
			_ = v.BindEnv("auth.jwtsecret", "NUWA_JWT_SECRET")
			_ = v.BindEnv("database.dsn", "NUWA_DB_DSN")
			for key, flag := range map[string]string{
				"database.dsn":   "db.dsn",
				"auth.jwtsecret": "secret",
				"log.level":      "log.level",
				"log.format":     "log.format",
				"log.file":       "log.file",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			common.SetupLoggerFromViper(v)
			env.V = v
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (services/server/etc/nuwa.yaml layout)")
	pf.StringSliceVar(&includes, "include", nil, "extra config files merged in order")
	pf.String("db.dsn", "", "database DSN (postgres://, mysql://, sqlite:///path, :memory:)")
	pf.String("secret", "", "credential signing secret")
	pf.String("log.level", "info", "debug|info|warn|error")
	pf.String("log.format", "console", "console|json")
	pf.String("log.file", "", "rotate logs into this file")

	root.AddCommand(admincmd.NewToken(env), admincmd.NewMigrate(env), admincmd.NewPlans(env), admincmd.NewUser(env), admincmd.NewAudit())

	if err := root.Execute(); err != nil {
		slog.Error("nuwactl", "error", err)
		os.Exit(1)
	}
}
