package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config menyimpan konfigurasi aplikasi
type Config struct {
	ListenPort string        `mapstructure:"listen_port"`
	Store      StoreConfig   `mapstructure:"store"`
	Seed       SeedConfig    `mapstructure:"seed"`
	Geo        GeoConfig     `mapstructure:"geo"`
	Panel      PanelConfig   `mapstructure:"panel"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Tracing    TracingConfig `mapstructure:"tracing"`
}

// StoreConfig selects where the failing-country registry lives.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"` // memory, file or redis
	Key           string `mapstructure:"key"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	FilePath      string `mapstructure:"file_path"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// SeedConfig is written to the store on startup only if the key is missing.
type SeedConfig struct {
	File             string            `mapstructure:"file"`
	FailingCountries map[string]string `mapstructure:"failing_countries"`
}

// GeoConfig mendefinisikan sumber kode negara untuk setiap request
type GeoConfig struct {
	Header         string `mapstructure:"header"`
	DefaultCountry string `mapstructure:"default_country"`
}

type PanelConfig struct {
	FormAction string         `mapstructure:"form_action"`
	Countries  []PanelCountry `mapstructure:"countries"` // empty = built-in list
}

type PanelCountry struct {
	Code string `mapstructure:"code"`
	Flag string `mapstructure:"flag"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_port", "8787")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.key", "failingCountries")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.file_path", "")
	v.SetDefault("store.max_retries", 5)
	v.SetDefault("seed.file", "")
	v.SetDefault("geo.header", "CF-IPCountry")
	v.SetDefault("geo.default_country", "")
	v.SetDefault("panel.form_action", "/")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "colofail")
	v.SetDefault("tracing.endpoint", "localhost:4318")
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"listen-port":   "listen_port",
	"store-backend": "store.backend",
	"redis-addr":    "store.redis_addr",
	"log-level":     "logging.level",
}

// New builds a viper instance with defaults, COLOFAIL_* environment
// overrides, bound flags and, when path is set, the YAML file at path.
func New(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COLOFAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals the current viper state.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// LoadConfig membaca konfigurasi dari file
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v, err := New(path, flags)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Watch re-decodes the config whenever the backing file changes. Decode
// failures are passed to onChange as a nil config with the error.
func Watch(v *viper.Viper, onChange func(cfg *Config, ev fsnotify.Event, err error)) {
	v.OnConfigChange(func(ev fsnotify.Event) {
		if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := Decode(v)
		onChange(cfg, ev, err)
	})
	v.WatchConfig()
}
