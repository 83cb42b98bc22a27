package internal

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/pagedb/internal/dberr"
)

const (
	DefaultRowsPerPage = 10
	DefaultMaxRows     = 10000
	EnvPrefix          = "PAGEDB"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	Workdir     string `mapstructure:"workdir"`
	RowsPerPage uint32 `mapstructure:"rows_per_page"`
	MaxRows     uint32 `mapstructure:"max_rows"`
	// Sync fsyncs every slot write. Off trades crash durability of the
	// last writes for speed.
	Sync bool `mapstructure:"sync"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Workdir:     ".",
			RowsPerPage: DefaultRowsPerPage,
			MaxRows:     DefaultMaxRows,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("storage.workdir", d.Storage.Workdir)
	v.SetDefault("storage.rows_per_page", d.Storage.RowsPerPage)
	v.SetDefault("storage.max_rows", d.Storage.MaxRows)
	v.SetDefault("storage.sync", d.Storage.Sync)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig reads a YAML file (skipped when path is empty) on top of the
// defaults, then applies PAGEDB_* environment overrides such as
// PAGEDB_STORAGE_SYNC=true.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Storage.RowsPerPage == 0 || c.Storage.RowsPerPage > math.MaxUint16 {
		return dberr.Validation("config: storage.rows_per_page must be in 1..%d", math.MaxUint16)
	}
	if c.Storage.MaxRows == 0 {
		return dberr.Validation("config: storage.max_rows must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return dberr.Validation("config: log.format %q (want text or json)", c.Log.Format)
	}
	return nil
}
