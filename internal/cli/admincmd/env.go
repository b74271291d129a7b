// Package admincmd holds the nuwactl subcommands.
package admincmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/nuwa-agi/nuwa/internal/db"
)

// Env is the configuration shared by every subcommand. V is filled by the
// root command before any subcommand runs.
type Env struct {
	V *viper.Viper
}

// get reads key, expanding ${VAR} placeholders the way the server's loader does.
func (e *Env) get(key string) string {
	return strings.TrimSpace(os.ExpandEnv(e.V.GetString(key)))
}

// Secret returns the credential signing secret.
func (e *Env) Secret() (string, error) {
	s := e.get("auth.jwtsecret")
	if s == "" {
		return "", fmt.Errorf("auth.jwtsecret (NUWA_JWT_SECRET) is not set")
	}
	return s, nil
}

// Open opens the configured database.
func (e *Env) Open() (*gorm.DB, error) {
	return db.Open(e.get("database.dsn"))
}
