package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jask/subwatch/internal/analytics"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Ingest    IngestConfig
	Rules     RulesConfig
	Analytics AnalyticsConfig
	Savings   SavingsConfig
	UI        UIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// IngestConfig holds upload ingestion settings.
type IngestConfig struct {
	BatchLog string `mapstructure:"batch_log"`
}

// RulesConfig controls normalization rule seeding.
type RulesConfig struct {
	Version  string
	SeedFile string `mapstructure:"seed_file"`
}

// AnalyticsConfig holds detection thresholds.
type AnalyticsConfig struct {
	GhostDays        int     `mapstructure:"ghost_days"`
	TrialDays        int     `mapstructure:"trial_days"`
	PriceIncreasePct float64 `mapstructure:"price_increase_pct"`
	ForecastMonths   int     `mapstructure:"forecast_months"`
}

// SavingsConfig holds savings goals. A zero YearlyGoal means MonthlyGoal*12.
type SavingsConfig struct {
	MonthlyGoal float64 `mapstructure:"monthly_goal"`
	YearlyGoal  float64 `mapstructure:"yearly_goal"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Currency string
	Timezone string
}

// Thresholds converts the analytics section into engine parameters.
func (c AnalyticsConfig) Thresholds() analytics.Thresholds {
	t := analytics.DefaultThresholds()
	if c.GhostDays > 0 {
		t.GhostDays = c.GhostDays
	}
	if c.TrialDays > 0 {
		t.TrialDays = c.TrialDays
	}
	if c.PriceIncreasePct > 0 {
		t.PriceIncreasePct = c.PriceIncreasePct
	}
	if c.ForecastMonths > 0 {
		t.ForecastMonths = c.ForecastMonths
	}
	return t
}

// Goals converts the savings section into engine parameters.
func (c SavingsConfig) Goals() analytics.Goals {
	return analytics.NewGoals(c.MonthlyGoal, c.YearlyGoal)
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "subwatch")
}

// Load reads configuration from file and env. Env var overrides use prefix SUBWATCH_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(dataDir(), "subwatch.db"))
	v.SetDefault("ingest.batch_log", filepath.Join(dataDir(), "batches.bolt"))
	v.SetDefault("rules.version", "1.0.0")
	v.SetDefault("rules.seed_file", "")
	v.SetDefault("analytics.ghost_days", 60)
	v.SetDefault("analytics.trial_days", 7)
	v.SetDefault("analytics.price_increase_pct", 15.0)
	v.SetDefault("analytics.forecast_months", 12)
	v.SetDefault("savings.monthly_goal", 50000.0)
	v.SetDefault("savings.yearly_goal", 0.0)
	v.SetDefault("ui.currency", "KRW")
	v.SetDefault("ui.timezone", "Asia/Seoul")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SUBWATCH_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "subwatch"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SUBWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("SUBWATCH_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "subwatch", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("ingest.batch_log", cfg.Ingest.BatchLog)
	v.Set("rules.version", cfg.Rules.Version)
	v.Set("rules.seed_file", cfg.Rules.SeedFile)
	v.Set("analytics.ghost_days", cfg.Analytics.GhostDays)
	v.Set("analytics.trial_days", cfg.Analytics.TrialDays)
	v.Set("analytics.price_increase_pct", cfg.Analytics.PriceIncreasePct)
	v.Set("analytics.forecast_months", cfg.Analytics.ForecastMonths)
	v.Set("savings.monthly_goal", cfg.Savings.MonthlyGoal)
	v.Set("savings.yearly_goal", cfg.Savings.YearlyGoal)
	v.Set("ui.currency", cfg.UI.Currency)
	v.Set("ui.timezone", cfg.UI.Timezone)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
