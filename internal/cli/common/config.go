package common

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override (NUWA_DATABASE_DSN, ...).
const EnvPrefix = "NUWA"

// LoadWithIncludes reads base config and merges includes in order. An empty
// base yields an env-only configuration.
func LoadWithIncludes(base string, includes []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if base != "" {
		v.SetConfigFile(base)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	for _, inc := range includes {
		iv := viper.New()
		iv.SetConfigFile(inc)
		if err := iv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
		if err := v.MergeConfigMap(iv.AllSettings()); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
	}
	return v, nil
}
