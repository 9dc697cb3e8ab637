// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-router/internal/logger"
)

// EnvPrefix is prepended to every environment override, e.g. ROUTER_SIM_WORKERS.
const EnvPrefix = "ROUTER_SIM"

type Config struct {
	PlanFile            string        `mapstructure:"plan_file"`
	Workers             int           `mapstructure:"workers"`
	Retries             int           `mapstructure:"retries"`
	ComputeUnitLimit    uint32        `mapstructure:"compute_unit_limit"`
	MaxComputeUnitLimit uint32        `mapstructure:"max_compute_unit_limit"`
	MetricsAddr         string        `mapstructure:"metrics_addr"`
	JournalFile         string        `mapstructure:"journal_file"`
	ReportCSV           string        `mapstructure:"report_csv"`
	EventBuffer         int           `mapstructure:"event_buffer"`
	Log                 logger.Config `mapstructure:"log"`
}

const (
	DefaultWorkers     = 4
	DefaultRetries     = 3
	DefaultEventBuffer = 256
)

func defaults() map[string]interface{} {
	logDefaults := logger.DefaultConfig()
	return map[string]interface{}{
		"plan_file":              "",
		"workers":                DefaultWorkers,
		"retries":                DefaultRetries,
		"compute_unit_limit":     computebudget.DefaultUnits,
		"max_compute_unit_limit": computebudget.MaxUnits,
		"metrics_addr":           "",
		"journal_file":           "",
		"report_csv":             "",
		"event_buffer":           DefaultEventBuffer,
		"log.level":              logDefaults.Level,
		"log.file":               logDefaults.File,
		"log.max_size":           logDefaults.MaxSize,
		"log.max_age":            logDefaults.MaxAge,
		"log.max_backups":        logDefaults.MaxBackups,
		"log.compress":           logDefaults.Compress,
		"log.development":        logDefaults.Development,
	}
}

// LoadConfig reads path (JSON, YAML or TOML by extension) over the defaults
// and applies ROUTER_SIM_* environment overrides. An empty path uses
// defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.PlanFile == "" {
		return errors.New("plan_file is required")
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr: %w", err)
		}
	}
	if _, err := logger.ParseLevel(cfg.Log.Level, cfg.Log.Development); err != nil {
		return err
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if cfg.MaxComputeUnitLimit == 0 || cfg.MaxComputeUnitLimit > computebudget.MaxUnits {
		return fmt.Errorf("max_compute_unit_limit must be in (0, %d]", computebudget.MaxUnits)
	}
	if cfg.ComputeUnitLimit == 0 || cfg.ComputeUnitLimit > cfg.MaxComputeUnitLimit {
		return errors.New("compute_unit_limit must be positive and not exceed max_compute_unit_limit")
	}
	return nil
}
