package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PANOTILES"

// Geometry kinds accepted by the geometry option.
const (
	geometryFlat     = "flat"
	geometryEquirect = "equirect"
)

type config struct {
	Input    string `mapstructure:"input"`
	Geometry string `mapstructure:"geometry"`
	TileSize int    `mapstructure:"tile-size"`
	// Levels caps the number of pyramid levels; 0 keeps every level that
	// divides evenly.
	Levels int `mapstructure:"levels"`

	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	Backend     string `mapstructure:"backend"`
	Progressive bool   `mapstructure:"progressive"`

	Camera        string        `mapstructure:"camera"`
	Frames        int           `mapstructure:"frames"`
	FrameInterval time.Duration `mapstructure:"frame-interval"`

	CacheSize   int   `mapstructure:"cache-size"`
	CacheBytes  int64 `mapstructure:"cache-bytes"`
	Concurrency int   `mapstructure:"concurrency"`

	Output string `mapstructure:"output"`
	Report string `mapstructure:"report"`

	LogLevel    string `mapstructure:"log-level"`
	LogFile     string `mapstructure:"log-file"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("panotiles", pflag.ContinueOnError)
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("input", "", "input image (png or jpeg)")
	fs.String("geometry", geometryFlat, "geometry kind (flat|equirect)")
	fs.Int("tile-size", 256, "tile edge in pixels for flat images")
	fs.Int("levels", 0, "maximum number of pyramid levels (0 = all)")
	fs.Int("width", 800, "viewport width")
	fs.Int("height", 600, "viewport height")
	fs.String("backend", "software", "rendering backend")
	fs.Bool("progressive", false, "load every level up to the visible one")
	fs.String("camera", "", "camera path manifest (json)")
	fs.Int("frames", 120, "frame budget per camera step")
	fs.Duration("frame-interval", 50*time.Millisecond, "maximum wait between frames")
	fs.Int("cache-size", 512, "evictable textures kept per layer")
	fs.Int64("cache-bytes", 0, "texture byte budget (0 = unbounded)")
	fs.Int("concurrency", 4, "parallel tile loads")
	fs.String("output", "panotiles.png", "output image")
	fs.String("report", "", "json report file")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")
	fs.String("log-file", "", "rotating log file")
	fs.String("metrics-addr", "", "serve prometheus metrics on this address")
	return fs
}

// loadConfig merges flags, PANOTILES_* environment variables and an
// optional config file, in that order of precedence.
func loadConfig(args []string) (config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return config{}, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var conf config
	if err := v.Unmarshal(&conf); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.validate(); err != nil {
		return config{}, err
	}
	return conf, nil
}

func (c config) validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	switch c.Geometry {
	case geometryFlat, geometryEquirect:
	default:
		errs = append(errs, fmt.Errorf("unknown geometry %q", c.Geometry))
	}
	if c.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid tile size %d", c.TileSize))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid viewport %dx%d", c.Width, c.Height))
	}
	if c.Frames <= 0 {
		errs = append(errs, fmt.Errorf("invalid frame budget %d", c.Frames))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}
