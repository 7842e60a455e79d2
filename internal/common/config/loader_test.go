package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
app:
  name: proof-engine
database:
  postgres:
    host: localhost
    database: proof
    user: proof
  redis:
    address: localhost:6379
engine:
  natural_floor: 3
graduation:
  default_threshold: 40
  thresholds:
    saas: 50
    ecommerce: 120
  post_ratio: 0.75
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.NaturalFloor)
	assert.Equal(t, 5, cfg.Engine.RecentWindow)
	assert.Equal(t, 30000, cfg.Engine.SnapshotTTL)
	assert.Equal(t, "snapshot:widget", cfg.Engine.SnapshotKeyBase)

	require.NotNil(t, cfg.Graduation.PreRatio)
	assert.Equal(t, 0.2, *cfg.Graduation.PreRatio)
	assert.Equal(t, 0.75, *cfg.Graduation.PostRatio)
	assert.Equal(t, 1.0, cfg.Graduation.CTRFactor)
	assert.Equal(t, 7, cfg.Graduation.WindowDays)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ZeroPreRatioIsKept(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sampleConfig+"  pre_ratio: 0\n"))
	require.NoError(t, err)

	require.NotNil(t, cfg.Graduation.PreRatio)
	assert.Equal(t, 0.0, *cfg.Graduation.PreRatio)
}

func TestThresholdFor(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Graduation.ThresholdFor("saas"))
	assert.Equal(t, 120, cfg.Graduation.ThresholdFor("ECommerce"))
	assert.Equal(t, 40, cfg.Graduation.ThresholdFor("agency"))
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.Postgres.Host = "localhost"
		cfg.Database.Postgres.Database = "proof"
		cfg.Database.Postgres.User = "proof"
		cfg.Database.Redis.Address = "localhost:6379"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host",
		},
		{
			name:    "missing redis",
			mutate:  func(c *Config) { c.Database.Redis.Address = "" },
			wantErr: "database.redis.address",
		},
		{
			name:    "camunda enabled without broker",
			mutate:  func(c *Config) { c.Camunda.Enabled = true },
			wantErr: "camunda.broker_address",
		},
		{
			name:    "post ratio out of range",
			mutate:  func(c *Config) { r := 1.5; c.Graduation.PostRatio = &r },
			wantErr: "graduation.post_ratio",
		},
		{
			name:    "non-positive threshold",
			mutate:  func(c *Config) { c.Graduation.Thresholds["saas"] = 0 },
			wantErr: "graduation.thresholds.saas",
		},
		{
			name:    "sns without topic",
			mutate:  func(c *Config) { c.Notifications.SNS.Enabled = true },
			wantErr: "notifications.sns.topic_arn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, "1.5s", GetDuration(1500).String())
}
