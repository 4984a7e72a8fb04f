// Package config loads runtime settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	// URL selects the postgres backend; empty means in-memory.
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DevConfig struct {
	Seed bool `mapstructure:"seed"`
}

type JobsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	PageSize int           `mapstructure:"page_size"`
}

type LedgerConfig struct {
	Timezone        string `mapstructure:"timezone"`
	DefaultCurrency string `mapstructure:"default_currency"`
}

type ScheduleConfig struct {
	HorizonMonths int `mapstructure:"horizon_months"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Dev      DevConfig      `mapstructure:"dev"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dev.seed", false)
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.interval", time.Hour)
	v.SetDefault("jobs.page_size", 200)
	v.SetDefault("ledger.timezone", "UTC")
	v.SetDefault("ledger.default_currency", "USD")
	v.SetDefault("schedule.horizon_months", 12)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
}

// Load reads path (or CONFIG_FILE, or ./config.yaml when present) and applies
// environment overrides: jobs.interval is JOBS_INTERVAL, database.url is DATABASE_URL.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("ledger.timezone: %w", err)
	}
	if c.Jobs.Interval <= 0 {
		return errors.New("jobs.interval must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if len(c.Ledger.DefaultCurrency) != 3 {
		return fmt.Errorf("ledger.default_currency: %q is not an ISO 4217 code", c.Ledger.DefaultCurrency)
	}
	return nil
}

// Location returns the timezone that decides which calendar day "today" is.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Ledger.Timezone)
}
