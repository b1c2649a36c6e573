package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the VELOXQL_* variables for the test and restores them
// afterwards, including those set by .env files.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{KeySchema, KeyGrants, KeyDialect, KeyDSN, KeyLenient, KeyLogLevel, KeySlowThreshold, KeyRoles, KeyAdminRoles} {
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(viper.New(), afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Schema:        "schema.yaml",
		Dialect:       "sqlite",
		LogLevel:      slog.LevelInfo,
		SlowThreshold: 100 * time.Millisecond,
	}, cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	cwd, err := os.Getwd()
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	writeFile(t, fs, filepath.Join(cwd, ".veloxql.yaml"), `
schema: meta.yaml
dialect: postgres
lenient: true
log-level: debug
slow-threshold: 2s
roles: [analyst]
admin-roles: [admin, owner]
`)
	t.Setenv("VELOXQL_DIALECT", "mysql")
	t.Setenv("VELOXQL_SLOW_THRESHOLD", "250ms")

	v := viper.New()
	v.Set(KeySchema, "flag.yaml")
	cfg, err := Load(v, fs)
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", cfg.Schema, "explicit values win")
	assert.Equal(t, "mysql", cfg.Dialect, "environment wins over the file")
	assert.True(t, cfg.Lenient)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowThreshold)
	assert.Equal(t, []string{"analyst"}, cfg.Roles)
	assert.Equal(t, []string{"admin", "owner"}, cfg.AdminRoles)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	writeFile(t, fs, ".env", "VELOXQL_GRANTS=grants.yaml\nVELOXQL_SCHEMA=dot.yaml\nVELOXQL_DSN=file:dot.db\nOTHER_VAR=x\n")
	writeFile(t, fs, ".env.local", "VELOXQL_DSN=file:local.db\n")
	t.Setenv("VELOXQL_SCHEMA", "env.yaml")
	t.Setenv("OTHER_VAR", "kept")

	cfg, err := Load(viper.New(), fs)
	require.NoError(t, err)
	assert.Equal(t, "grants.yaml", cfg.Grants)
	assert.Equal(t, "env.yaml", cfg.Schema, ".env does not override the environment")
	assert.Equal(t, "file:local.db", cfg.DSN, ".env.local overrides .env")
	assert.Equal(t, "kept", os.Getenv("OTHER_VAR"))
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	t.Run("LogLevel", func(t *testing.T) {
		t.Setenv("VELOXQL_LOG_LEVEL", "loud")
		_, err := Load(viper.New(), afero.NewMemMapFs())
		assert.ErrorContains(t, err, KeyLogLevel)
	})
	t.Run("ConfigFile", func(t *testing.T) {
		cwd, err := os.Getwd()
		require.NoError(t, err)
		fs := afero.NewMemMapFs()
		writeFile(t, fs, filepath.Join(cwd, ".veloxql.yaml"), "schema: [unterminated\n")
		_, err = Load(viper.New(), fs)
		assert.Error(t, err)
	})
	t.Run("DotEnv", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, ".env", "VELOXQL_DSN='unterminated\n")
		_, err := Load(viper.New(), fs)
		assert.Error(t, err)
	})
}
