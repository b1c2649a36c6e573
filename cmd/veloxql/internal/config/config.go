// Package config loads the veloxql command configuration from flags, the
// environment and an optional .veloxql.yaml file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the command.
const EnvPrefix = "VELOXQL"

// Keys of the configuration values. Flags use the same names.
const (
	KeySchema        = "schema"
	KeyGrants        = "grants"
	KeyDialect       = "dialect"
	KeyDSN           = "dsn"
	KeyLenient       = "lenient"
	KeyLogLevel      = "log-level"
	KeySlowThreshold = "slow-threshold"
	KeyRoles         = "roles"
	KeyAdminRoles    = "admin-roles"
)

// Config holds the command configuration.
type Config struct {
	// Schema is the path of the table metadata document.
	Schema string
	// Grants is the path of the permissions document. Empty grants full access.
	Grants string
	// Dialect names the SQL dialect statements are compiled for.
	Dialect string
	// DSN is the data source used by run and inspect.
	DSN string
	// Lenient resolves unknown tables and columns instead of rejecting them.
	Lenient       bool
	LogLevel      slog.Level
	SlowThreshold time.Duration
	// Roles are the roles of the viewer queries are compiled for.
	Roles []string
	// AdminRoles bypass the grants when the viewer holds any of them.
	AdminRoles []string
}

// Defaults sets the default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeySchema, "schema.yaml")
	v.SetDefault(KeyDialect, "sqlite")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySlowThreshold, 100*time.Millisecond)
}

// Load reads the configuration into v and returns it. Values are taken, in
// order of precedence, from flags bound to v, VELOXQL_* environment
// variables (also read from .env files), .veloxql.yaml in the working or
// home directory, and the defaults.
func Load(v *viper.Viper, fs afero.Fs) (*Config, error) {
	if err := loadDotEnv(fs); err != nil {
		return nil, err
	}
	v.SetFs(fs)
	v.SetConfigName(".veloxql")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "veloxql"))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	Defaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}
	cfg := &Config{
		Schema:        v.GetString(KeySchema),
		Grants:        v.GetString(KeyGrants),
		Dialect:       v.GetString(KeyDialect),
		DSN:           v.GetString(KeyDSN),
		Lenient:       v.GetBool(KeyLenient),
		SlowThreshold: v.GetDuration(KeySlowThreshold),
		Roles:         stringSlice(v, KeyRoles),
		AdminRoles:    stringSlice(v, KeyAdminRoles),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	return cfg, nil
}

// loadDotEnv loads .env and then .env.local, which overrides it. Variables
// already set in the environment keep their values for .env.
func loadDotEnv(fs afero.Fs) error {
	for _, name := range []string{".env", ".env.local"} {
		f, err := fs.Open(name)
		if err != nil {
			continue
		}
		env, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("config: parsing %s: %w", name, err)
		}
		for k, val := range env {
			if !strings.HasPrefix(k, EnvPrefix+"_") {
				continue
			}
			if _, set := os.LookupEnv(k); set && name == ".env" {
				continue
			}
			if err := os.Setenv(k, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// stringSlice reads a list key. Unset or empty lists are nil.
func stringSlice(v *viper.Viper, key string) []string {
	if s := v.GetStringSlice(key); len(s) > 0 {
		return s
	}
	return nil
}
