package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUBWATCH_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "1.0.0", cfg.Rules.Version)
	require.Equal(t, 60, cfg.Analytics.GhostDays)
	require.Equal(t, 7, cfg.Analytics.TrialDays)
	require.Equal(t, 15.0, cfg.Analytics.PriceIncreasePct)
	require.Equal(t, 12, cfg.Analytics.ForecastMonths)
	require.Equal(t, 50000.0, cfg.Savings.MonthlyGoal)

	goals := cfg.Savings.Goals()
	require.Equal(t, 600000.0, goals.Yearly)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[analytics]
ghost_days = 30
trial_days = 3

[savings]
monthly_goal = 10000.0
yearly_goal = 150000.0
`), 0o644))
	t.Setenv("HOME", dir)
	t.Setenv("SUBWATCH_CONFIG", path)
	t.Setenv("SUBWATCH_ANALYTICS_FORECAST_MONTHS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Analytics.GhostDays)
	require.Equal(t, 3, cfg.Analytics.TrialDays)

	th := cfg.Analytics.Thresholds()
	require.Equal(t, 30, th.GhostDays)
	require.Equal(t, 6, th.ForecastMonths)
	require.Equal(t, 15.0, th.PriceIncreasePct)

	goals := cfg.Savings.Goals()
	require.Equal(t, 10000.0, goals.Monthly)
	require.Equal(t, 150000.0, goals.Yearly)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	t.Setenv("HOME", dir)
	t.Setenv("SUBWATCH_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Analytics.GhostDays = 45
	cfg.UI.Currency = "USD"
	require.NoError(t, Save(cfg))

	again, err := Load()
	require.NoError(t, err)
	require.Equal(t, 45, again.Analytics.GhostDays)
	require.Equal(t, "USD", again.UI.Currency)
}
