// Package config loads the hub's strongly-typed configuration record from
// file, environment, and defaults, grounded on dittofs's pkg/config
// (viper-based layered loading, struct validation via go-playground's
// validator, fsnotify-driven hot reload).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the hub's entire static configuration. Hot paths hold it by
// value and re-copy from the atomic holder (Watcher) on reload, never
// reading viper directly from a connection goroutine.
type Config struct {
	Hub      HubConfig      `mapstructure:"hub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Listen   ListenConfig   `mapstructure:"listen"`
	Nick     NickConfig     `mapstructure:"nick"`
	Flood    FloodConfig    `mapstructure:"flood"`
	Share    ShareConfig    `mapstructure:"share"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
}

// HubConfig holds identity and capacity settings.
type HubConfig struct {
	Name          string `mapstructure:"name" validate:"required"`
	Description   string `mapstructure:"description"`
	MaxUsers      int    `mapstructure:"max_users" validate:"gte=0"`
	MaxPassive    int    `mapstructure:"max_passive" validate:"gte=0"`
	MaxPerIP      int    `mapstructure:"max_per_ip" validate:"gte=0"`
	MaxPerZone    int    `mapstructure:"max_per_zone" validate:"gte=0"`
	PluginBudget  time.Duration `mapstructure:"plugin_budget" validate:"gte=0"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// ListenConfig configures the TCP/TLS listener.
type ListenConfig struct {
	Addr        string `mapstructure:"addr" validate:"required"`
	TLSAddr     string `mapstructure:"tls_addr"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
}

// NickConfig configures nick validation.
type NickConfig struct {
	MinLength       int    `mapstructure:"min_length" validate:"gte=1"`
	MaxLength       int    `mapstructure:"max_length" validate:"gtefield=MinLength"`
	Forbidden       string `mapstructure:"forbidden"`
	Allowed         string `mapstructure:"allowed"`
	RequiredPrefix  string `mapstructure:"required_prefix"`
	PrefixCaseFold  bool   `mapstructure:"prefix_case_fold"`
}

// FloodLimit is one (period, limit, action) triple, keyed by command kind
// in FloodConfig.PerConnection/HubWide.
type FloodLimit struct {
	PeriodSeconds int    `mapstructure:"period_seconds" validate:"gte=0"`
	Limit         int    `mapstructure:"limit" validate:"gte=0"`
	Action        string `mapstructure:"action" validate:"omitempty,oneof=notify drop kick"`
}

// FloodConfig configures per-connection and hub-wide flood gates.
type FloodConfig struct {
	PerConnection    map[string]FloodLimit `mapstructure:"per_connection"`
	HubWide          map[string]FloodLimit `mapstructure:"hub_wide"`
	ReportIntervalS  int                   `mapstructure:"report_interval_seconds" validate:"gte=0"`
	TempBanMinutes   int                   `mapstructure:"temp_ban_minutes" validate:"gte=0"`
	PasswordBanMins  int                   `mapstructure:"password_ban_minutes" validate:"gte=0"`
	MaxClones        int                   `mapstructure:"max_clones" validate:"gte=0"`
}

// ShareConfig configures MyINFO share-size policy.
type ShareConfig struct {
	MinBytesByClass   map[string]int64 `mapstructure:"min_bytes_by_class"`
	PassiveMinFactor  float64          `mapstructure:"passive_min_factor" validate:"gte=0"`
}

// TimeoutConfig configures per-login-stage and idle timeouts.
type TimeoutConfig struct {
	Key               time.Duration `mapstructure:"key" validate:"gt=0"`
	ValidateNick      time.Duration `mapstructure:"validate_nick" validate:"gt=0"`
	Password          time.Duration `mapstructure:"password" validate:"gt=0"`
	MyINFO            time.Duration `mapstructure:"myinfo" validate:"gt=0"`
	Inactivity        time.Duration `mapstructure:"inactivity" validate:"gt=0"`
	DelayedPing       time.Duration `mapstructure:"delayed_ping" validate:"gte=0"`
	TempBanSweep      time.Duration `mapstructure:"temp_ban_sweep" validate:"gt=0"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DatabaseConfig configures the registration/ban SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

var validate = validator.New()

// Load reads configuration from the given path (or default search paths
// when empty), applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := readConfig(v); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("VHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vhub")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vhub")
	}
	return v
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read: %w", err)
	}
	return nil
}

// Default returns a Config populated with the hub's baked-in defaults —
// the values a freshly initialized hub runs with before an operator edits
// vhub.yaml.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			Name:         "vhub",
			MaxUsers:     500,
			MaxPassive:   100,
			MaxPerIP:     4,
			MaxPerZone:   0,
			PluginBudget: 50 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Listen:  ListenConfig{Addr: ":411"},
		Nick: NickConfig{
			MinLength: 1,
			MaxLength: 64,
			Forbidden: "$|<>",
		},
		Flood: FloodConfig{
			ReportIntervalS: 30,
			TempBanMinutes:  15,
			PasswordBanMins: 5,
			MaxClones:       2,
		},
		Share: ShareConfig{PassiveMinFactor: 1.0},
		Timeouts: TimeoutConfig{
			Key:          15 * time.Second,
			ValidateNick: 15 * time.Second,
			Password:     15 * time.Second,
			MyINFO:       30 * time.Second,
			Inactivity:   10 * time.Minute,
			TempBanSweep: 30 * time.Second,
		},
		Metrics:  MetricsConfig{Enabled: true, Addr: ":9090"},
		Database: DatabaseConfig{Path: "vhub.db"},
	}
}

// Watcher holds the live Config and swaps it atomically when the backing
// file changes, following the reload-ticker pattern the core expects
// (§ "a configuration-reload ticker re-reads settings").
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	onLoad  func(*Config)
}

// NewWatcher loads the initial config from path and arms fsnotify on its
// directory so edits trigger onLoad with the freshly validated Config.
// A failed reload keeps the previous Config in effect; its error is
// dropped and onLoad is not called.
func NewWatcher(path string, onLoad func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, onLoad: onLoad}
	w.current.Store(cfg)
	if path != "" {
		if err := w.watch(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: fsnotify: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for event := range watcher.Events {
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				continue
			}
			w.current.Store(cfg)
			if w.onLoad != nil {
				w.onLoad(cfg)
			}
		}
	}()
	return nil
}

// Current returns the most recently loaded, validated Config.
func (w *Watcher) Current() *Config { return w.current.Load() }
