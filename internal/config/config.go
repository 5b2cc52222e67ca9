// Package config loads worldsim settings from a YAML file and WORLDSIM_*
// environment variables, and watches the file for live changes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/talgya/worldhistory/internal/world"
)

// EnvPrefix prefixes every environment override, e.g. WORLDSIM_API_PORT.
const EnvPrefix = "WORLDSIM"

type Config struct {
	World   WorldConfig   `mapstructure:"world"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Storage StorageConfig `mapstructure:"storage"`
	API     APIConfig     `mapstructure:"api"`
	Log     LogConfig     `mapstructure:"log"`
}

type WorldConfig struct {
	Seed               int64   `mapstructure:"seed"`
	Radius             int     `mapstructure:"radius"`
	SeaLevel           float64 `mapstructure:"sea_level"`
	MountainLevel      float64 `mapstructure:"mountain_level"`
	StartingSites      int     `mapstructure:"starting_sites"`
	SiteSpacing        int     `mapstructure:"site_spacing"`
	StartingPopulation float64 `mapstructure:"starting_population"`
}

type EngineConfig struct {
	Speed            float64       `mapstructure:"speed"` // days per second
	FrameInterval    time.Duration `mapstructure:"frame_interval"`
	FrameBudget      time.Duration `mapstructure:"frame_budget"`
	MaxStepsPerFrame int           `mapstructure:"max_steps_per_frame"`
	TaskBudget       int           `mapstructure:"task_budget"`
}

type StorageConfig struct {
	DBPath         string `mapstructure:"db_path"`
	SaveEveryYears int    `mapstructure:"save_every_years"`
	KeepSnapshots  int    `mapstructure:"keep_snapshots"`
}

type APIConfig struct {
	Port          int           `mapstructure:"port"`
	AdminKey      string        `mapstructure:"admin_key"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level      slog.Level `mapstructure:"level"`
	File       string     `mapstructure:"file"` // empty = stdout only
	MaxSize    int        `mapstructure:"max_size"`
	MaxBackups int        `mapstructure:"max_backups"`
	MaxAge     int        `mapstructure:"max_age"`
	Compress   bool       `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	gen := world.DefaultGenConfig()
	v.SetDefault("world.seed", gen.Seed)
	v.SetDefault("world.radius", gen.Radius)
	v.SetDefault("world.sea_level", gen.SeaLevel)
	v.SetDefault("world.mountain_level", gen.MountainLvl)
	v.SetDefault("world.starting_sites", 8)
	v.SetDefault("world.site_spacing", 5)
	v.SetDefault("world.starting_population", 100.0)

	v.SetDefault("engine.speed", 365.0)
	v.SetDefault("engine.frame_interval", "100ms")
	v.SetDefault("engine.frame_budget", "50ms")
	v.SetDefault("engine.max_steps_per_frame", 10000)
	v.SetDefault("engine.task_budget", 64)

	v.SetDefault("storage.db_path", "data/worldhistory.db")
	v.SetDefault("storage.save_every_years", 10)
	v.SetDefault("storage.keep_snapshots", 20)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.admin_key", "")
	v.SetDefault("api.rate_per_second", 10.0)
	v.SetDefault("api.burst", 20)
	v.SetDefault("api.timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The short name predates the nested layout.
	v.BindEnv("api.admin_key", EnvPrefix+"_API_ADMIN_KEY", EnvPrefix+"_ADMIN_KEY")
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads defaults, then the file at path (if any), then the environment.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// Watch calls onChange with the new settings every time the file at path
// changes. Changes that fail to decode are logged and skipped.
func Watch(path string, onChange func(*Config)) error {
	if path == "" {
		return errors.New("watch: no config file")
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("config change ignored", "file", e.Name, "error", err)
			return
		}
		slog.Info("config changed", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	if err := c.GenConfig().Validate(); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	var errs []error
	if c.World.StartingSites < 1 {
		errs = append(errs, fmt.Errorf("world.starting_sites must be positive, got %d", c.World.StartingSites))
	}
	if c.World.StartingPopulation <= 0 {
		errs = append(errs, fmt.Errorf("world.starting_population must be positive, got %v", c.World.StartingPopulation))
	}
	if c.Engine.Speed < 0 {
		errs = append(errs, fmt.Errorf("engine.speed must not be negative, got %v", c.Engine.Speed))
	}
	if c.Engine.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.frame_interval must be positive, got %s", c.Engine.FrameInterval))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}
	return errors.Join(errs...)
}

// GenConfig returns the map generation parameters.
func (c *Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Radius:      c.World.Radius,
		Seed:        c.World.Seed,
		SeaLevel:    c.World.SeaLevel,
		MountainLvl: c.World.MountainLevel,
	}
}
