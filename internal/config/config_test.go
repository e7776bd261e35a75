package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAdapterEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "APP_MARKET", "MOCK_MODE",
		"NOTIFICATION_BASE_URL_OVERRIDE", "NOTIFICATION_TIMEOUT",
		"NOTIFICATION_RETRIES", "NOTIFICATION_MOCK_MODE",
	} {
		t.Setenv(key, "")
	}
}

func TestResolve_TableLookupDefaultEnvAndMarket(t *testing.T) {
	clearAdapterEnv(t)

	cfg, err := Resolve("notification", false)
	require.NoError(t, err)
	assert.Equal(t, "https://notification.ops.internal", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.MockMode)
	assert.False(t, cfg.Mutating)
}

func TestResolve_TableLookupByEnvAndMarket(t *testing.T) {
	clearAdapterEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_MARKET", "tw")

	cfg, err := Resolve("notification", false)
	require.NoError(t, err)
	assert.Equal(t, "https://notification.staging.tw.ops.internal", cfg.BaseURL)
	assert.Equal(t, 8*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
}

func TestResolve_OverrideBeatsTable(t *testing.T) {
	clearAdapterEnv(t)
	t.Setenv("NOTIFICATION_BASE_URL_OVERRIDE", "http://localhost:9999")
	t.Setenv("NOTIFICATION_TIMEOUT", "1500")
	t.Setenv("NOTIFICATION_RETRIES", "1")

	cfg, err := Resolve("notification", false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 1, cfg.MaxRetries)
}

func TestResolve_FallbackForUnknownService(t *testing.T) {
	clearAdapterEnv(t)

	cfg, err := Resolve("onboarding", false)
	require.NoError(t, err)
	assert.Equal(t, "http://onboarding.local", cfg.BaseURL)
	assert.Equal(t, fallbackTimeout, cfg.Timeout)
	assert.Equal(t, fallbackRetries, cfg.MaxRetries)
}

func TestResolve_MutatingDefaultsToSingleAttempt(t *testing.T) {
	clearAdapterEnv(t)

	cfg, err := Resolve("device", true)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxRetries, "mutating adapters must not inherit a retry budget")
	assert.True(t, cfg.Mutating)
}

func TestResolve_MutatingCanOptInViaEnv(t *testing.T) {
	clearAdapterEnv(t)
	t.Setenv("DEVICE_RETRIES", "2")

	cfg, err := Resolve("device", true)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRetries)
}

func TestResolve_MockModeToggles(t *testing.T) {
	clearAdapterEnv(t)
	t.Setenv("MOCK_MODE", "true")
	cfg, err := Resolve("notification", false)
	require.NoError(t, err)
	assert.True(t, cfg.MockMode)

	clearAdapterEnv(t)
	t.Setenv("NOTIFICATION_MOCK_MODE", "1")
	cfg, err = Resolve("notification", false)
	require.NoError(t, err)
	assert.True(t, cfg.MockMode)
}

func TestResolve_InvalidOverrides(t *testing.T) {
	clearAdapterEnv(t)
	t.Setenv("NOTIFICATION_TIMEOUT", "soon")
	_, err := Resolve("notification", false)
	require.Error(t, err)

	clearAdapterEnv(t)
	t.Setenv("NOTIFICATION_RETRIES", "-1")
	_, err = Resolve("notification", false)
	require.Error(t, err)
}
