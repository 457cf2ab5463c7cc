package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "Direction@ac-x.fr", cfg.Auth.AdminEmail)
	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "scolarix-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 20*time.Second, cfg.Email.SMTP.Timeout)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.True(t, cfg.Monitoring.Health.Enabled)

	require.Equal(t, "30 2 * * *", cfg.Maintenance.SnapshotSchedule)
	require.Equal(t, 14, cfg.Maintenance.SnapshotRetentionDays)

	dbCfg := cfg.Database.DatabaseSettings()
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.example.com", dbCfg.Host)
	require.Equal(t, "scolarix", dbCfg.Name)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, "scolarix", cfg.Auth.JWT.Issuer)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "0 3 * * *", cfg.Maintenance.SnapshotSchedule)
	require.Equal(t, 30, cfg.Maintenance.SnapshotRetentionDays)
}

func TestValidateRequiresSecretAndAdmin(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "s3cret"
	require.Error(t, cfg.Validate())

	cfg.Auth.AdminEmail = "direction@ac-x.fr"
	require.NoError(t, cfg.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCOLARIX_SERVER_PORT", "7001")
	t.Setenv("SCOLARIX_AUTH_ADMIN_EMAIL", "admin@ac-x.fr")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7001, cfg.Server.Port)
	require.Equal(t, "admin@ac-x.fr", cfg.Auth.AdminEmail)
}
