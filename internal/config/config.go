package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"event-analytics/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs dashboard refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SupabaseConfig covers the PostgREST endpoint used when no DSN is configured.
type SupabaseConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	SeriesTable    string        `mapstructure:"series_table"`
	FunnelTable    string        `mapstructure:"funnel_table"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AnalyticsConfig tunes the engine and selects the series refreshed on every tick.
type AnalyticsConfig struct {
	Series           []string           `mapstructure:"series"`
	ForecastPeriods  int                `mapstructure:"forecast_periods"`
	AnomalyThreshold float64            `mapstructure:"anomaly_threshold"`
	SeasonalPeriod   int                `mapstructure:"seasonal_period"`
	HistoryLimit     int                `mapstructure:"history_limit"`
	Workers          int                `mapstructure:"workers"`
	FunnelBenchmarks map[string]float64 `mapstructure:"funnel_benchmarks"`
}

// AlertingConfig defines anomaly alert routing.
type AlertingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	// Retention bounds how long alert records are kept. Zero keeps them forever.
	Retention time.Duration  `mapstructure:"retention"`
	Channels  []string       `mapstructure:"channels"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Webhook   WebhookConfig  `mapstructure:"webhook"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// WebhookConfig describes a generic JSON webhook channel.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
	ChartWidth    int `mapstructure:"chart_width"`
	ChartHeight   int `mapstructure:"chart_height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eventpulse")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x65767473))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("supabase.series_table", "metric_points")
	v.SetDefault("supabase.funnel_table", "funnel_stage_counts")
	v.SetDefault("supabase.request_timeout", "10s")
	v.SetDefault("supabase.user_agent", "eventpulse/1.0")

	v.SetDefault("analytics.series", []string{"registrations", "page_views"})
	v.SetDefault("analytics.forecast_periods", 7)
	v.SetDefault("analytics.anomaly_threshold", 2.5)
	v.SetDefault("analytics.seasonal_period", 7)
	v.SetDefault("analytics.history_limit", 90)
	v.SetDefault("analytics.workers", 4)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "6h")
	v.SetDefault("alerting.retention", "720h")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.webhook.enabled", false)
	v.SetDefault("alerting.webhook.timeout", "10s")

	v.SetDefault("export.max_data_points", 5000)
	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Analytics.ForecastPeriods < 0 {
		return fmt.Errorf("analytics.forecast_periods cannot be negative")
	}
	if c.Analytics.AnomalyThreshold <= 0 {
		return fmt.Errorf("analytics.anomaly_threshold must be greater than zero")
	}
	if c.Analytics.SeasonalPeriod < 0 {
		return fmt.Errorf("analytics.seasonal_period cannot be negative")
	}
	if c.Analytics.HistoryLimit < 2 {
		return fmt.Errorf("analytics.history_limit must be at least 2")
	}
	if c.Analytics.Workers <= 0 {
		return fmt.Errorf("analytics.workers must be greater than zero")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.Retention < 0 {
		return fmt.Errorf("alerting.retention cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Webhook.Enabled && c.Alerting.Webhook.URL == "" {
		return fmt.Errorf("alerting.webhook.url is required")
	}
	if c.Supabase.URL != "" && c.Supabase.APIKey == "" {
		return fmt.Errorf("supabase.api_key is required when supabase.url is set")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ResolvePeriods returns either the CLI override or the configured forecast horizon.
func (c *Config) ResolvePeriods(override int) int {
	if override > 0 {
		return override
	}
	return c.Analytics.ForecastPeriods
}

// Benchmarks returns the configured funnel benchmark table, or nil when none is set.
func (c *Config) Benchmarks() map[string]float64 {
	if len(c.Analytics.FunnelBenchmarks) == 0 {
		return nil
	}
	out := make(map[string]float64, len(c.Analytics.FunnelBenchmarks))
	for k, v := range c.Analytics.FunnelBenchmarks {
		out[strings.ToLower(k)] = v
	}
	return out
}
