/*
config.go - Process configuration

PURPOSE:
  Reads the server and CLI configuration from an optional .env file,
  ABSENCE_* environment variables and command-line flags, in increasing
  order of precedence.

KEYS:
  port                       HTTP port (8080)
  db                         sqlite database path (absence.db)
  catalog                    catalog YAML file (catalog.yaml)
  log-level                  debug | info | warn | error (info)
  log-format                 json | text (json)
  reserved-groups            groups hidden from automatic resolution, replaces
                             the catalog defaults when set
  escalate-orphan-replacing  make orphan replacing codes blocking (false)
  max-request-days           longest accepted request, 0 disables (366)
  daily-minutes              working minutes of a full day (432)
  settings-refresh           engine settings reload interval, 0 disables (1m)

  Dashes become underscores in environment names: ABSENCE_LOG_LEVEL.

SEE ALSO:
  - provider.go: live engine settings
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/engine"
)

const EnvPrefix = "ABSENCE"

const (
	KeyPort                    = "port"
	KeyDB                      = "db"
	KeyCatalog                 = "catalog"
	KeyLogLevel                = "log-level"
	KeyLogFormat               = "log-format"
	KeyReservedGroups          = "reserved-groups"
	KeyEscalateOrphanReplacing = "escalate-orphan-replacing"
	KeyMaxRequestDays          = "max-request-days"
	KeyDailyMinutes            = "daily-minutes"
	KeySettingsRefresh         = "settings-refresh"
)

// Config is the resolved process configuration.
type Config struct {
	Port            int
	DBPath          string
	CatalogPath     string
	LogLevel        slog.Level
	LogFormat       string
	ReservedGroups  []string
	SettingsRefresh time.Duration
	Settings        engine.Settings
}

// Setup prepares v for the ABSENCE_* environment and sets defaults. Safe to
// call more than once.
func Setup(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := engine.DefaultSettings()
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDB, "absence.db")
	v.SetDefault(KeyCatalog, "catalog.yaml")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyReservedGroups, []string{})
	v.SetDefault(KeyEscalateOrphanReplacing, defaults.EscalateOrphanReplacing)
	v.SetDefault(KeyMaxRequestDays, defaults.MaxRequestDays)
	v.SetDefault(KeyDailyMinutes, defaults.DefaultDailyMinutes)
	v.SetDefault(KeySettingsRefresh, time.Minute)
}

// BindFlags binds every flag whose name is a configuration key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{
		KeyPort, KeyDB, KeyCatalog, KeyLogLevel, KeyLogFormat, KeyReservedGroups,
		KeyEscalateOrphanReplacing, KeyMaxRequestDays, KeyDailyMinutes, KeySettingsRefresh,
	} {
		flag := flags.Lookup(key)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads .env from the working directory. A missing file is not
// an error; variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the configuration from v. Call Setup first.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:            v.GetInt(KeyPort),
		DBPath:          v.GetString(KeyDB),
		CatalogPath:     v.GetString(KeyCatalog),
		LogFormat:       strings.ToLower(v.GetString(KeyLogFormat)),
		ReservedGroups:  splitList(v.GetStringSlice(KeyReservedGroups)),
		SettingsRefresh: v.GetDuration(KeySettingsRefresh),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: %d", KeyPort, cfg.Port)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("invalid %s: %q", KeyLogFormat, cfg.LogFormat)
	}
	if cfg.SettingsRefresh < 0 {
		return nil, fmt.Errorf("invalid %s: %s", KeySettingsRefresh, cfg.SettingsRefresh)
	}

	settings, err := SettingsFrom(v)()
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings
	return cfg, nil
}

// CatalogOptions maps the catalog-related keys. Configured reserved groups
// replace the catalog defaults; without any the defaults apply.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{ReservedGroups: c.ReservedGroups}
}

// SettingsFrom returns a loader reading the engine settings from v. Every
// call consults the environment again.
func SettingsFrom(v *viper.Viper) Loader {
	return func() (engine.Settings, error) {
		s := engine.Settings{
			EscalateOrphanReplacing: v.GetBool(KeyEscalateOrphanReplacing),
			MaxRequestDays:          v.GetInt(KeyMaxRequestDays),
			DefaultDailyMinutes:     v.GetInt(KeyDailyMinutes),
		}
		if s.MaxRequestDays < 0 {
			return engine.Settings{}, fmt.Errorf("invalid %s: %d", KeyMaxRequestDays, s.MaxRequestDays)
		}
		if s.DefaultDailyMinutes <= 0 {
			return engine.Settings{}, fmt.Errorf("invalid %s: %d", KeyDailyMinutes, s.DefaultDailyMinutes)
		}
		return s, nil
	}
}

// splitList accepts both repeated values and a single comma-separated one,
// as environment variables arrive.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
