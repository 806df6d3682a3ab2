package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "file", c.DBType)
	assert.Equal(t, "jwt", c.AuthMode)
	assert.Equal(t, "UTC", c.Location().String())
	assert.False(t, c.EnforceAccrualCeiling)
	assert.Equal(t, 1.0, c.AccrualPerMinute)
	assert.NotEmpty(t, c.Secret())
}

func TestFromEnv_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("POSTGRES_DSN", "postgres://localhost/sleepcash")
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.DBType)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"unknown backend":    {"STORAGE_BACKEND", "mongo"},
		"unknown env":        {"APP_ENV", "qa"},
		"bad timezone":       {"REWARD_TIMEZONE", "Mars/Olympus"},
		"bad bool":           {"REWARD_ENFORCE_ACCRUAL_CEILING", "maybe"},
		"zero accrual":       {"REWARD_ACCRUAL_PER_MINUTE", "0"},
		"remote without url": {"AUTH_MODE", "remote"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", c.Secret())
}

func TestFromEnv_Timezone(t *testing.T) {
	t.Setenv("REWARD_TIMEZONE", "Asia/Seoul")
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", c.Location().String())
}
