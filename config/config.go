package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/sartorproj/fuelcast/search"
	"github.com/sartorproj/fuelcast/timeseries"
)

// DefaultPath is read when neither an explicit path nor FUELCAST_CONFIG is set.
const DefaultPath = "configs/fuelcast.yaml"

// Sink kinds accepted in results.sinks.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
)

// CronParser parses schedule.cron; the first field is seconds.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config holds all application configuration.
type Config struct {
	Data struct {
		RawGlob      string  `yaml:"raw_glob"`
		Product      string  `yaml:"product"`
		ProcessedDir string  `yaml:"processed_dir"`
		TrainRatio   float64 `yaml:"train_ratio"`
		FillMethod   string  `yaml:"fill_method"`
	} `yaml:"data"`
	Search struct {
		Models        []string `yaml:"models"`
		Granularities []string `yaml:"granularities"`
		MaxP          *int     `yaml:"max_p"`
		MaxD          *int     `yaml:"max_d"`
		MaxQ          *int     `yaml:"max_q"`
		MaxSeasonalP  *int     `yaml:"max_seasonal_p"`
		MaxSeasonalD  *int     `yaml:"max_seasonal_d"`
		MaxSeasonalQ  *int     `yaml:"max_seasonal_q"`
	} `yaml:"search"`
	Results struct {
		Sinks          []string `yaml:"sinks"`
		MetricsDir     string   `yaml:"metrics_dir"`
		PredictionsDir string   `yaml:"predictions_dir"`
		SQLitePath     string   `yaml:"sqlite_path"`
	} `yaml:"results"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Path resolves the config file location: explicit path, then
// FUELCAST_CONFIG, then DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("FUELCAST_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// LoadDotEnv loads the given env files (".env" when none) without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FUELCAST_RAW_GLOB"); v != "" {
		c.Data.RawGlob = v
	}
	if v := os.Getenv("FUELCAST_PROCESSED_DIR"); v != "" {
		c.Data.ProcessedDir = v
	}
	if v := os.Getenv("FUELCAST_TRAIN_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FUELCAST_TRAIN_RATIO: %w", err)
		}
		c.Data.TrainRatio = ratio
	}
	if v := os.Getenv("FUELCAST_FILL_METHOD"); v != "" {
		c.Data.FillMethod = v
	}
	if v := os.Getenv("FUELCAST_MODELS"); v != "" {
		c.Search.Models = splitList(v)
	}
	if v := os.Getenv("FUELCAST_GRANULARITIES"); v != "" {
		c.Search.Granularities = splitList(v)
	}
	if v := os.Getenv("FUELCAST_SINKS"); v != "" {
		c.Results.Sinks = splitList(v)
	}
	if v := os.Getenv("FUELCAST_METRICS_DIR"); v != "" {
		c.Results.MetricsDir = v
	}
	if v := os.Getenv("FUELCAST_PREDICTIONS_DIR"); v != "" {
		c.Results.PredictionsDir = v
	}
	if v := os.Getenv("FUELCAST_SQLITE_PATH"); v != "" {
		c.Results.SQLitePath = v
	}
	if v := os.Getenv("FUELCAST_CRON"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
	if v := os.Getenv("FUELCAST_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Data.RawGlob == "" {
		c.Data.RawGlob = "data/raw/*.csv"
	}
	if c.Data.Product == "" {
		c.Data.Product = "GASOLINA"
	}
	if c.Data.ProcessedDir == "" {
		c.Data.ProcessedDir = "data/processed"
	}
	if c.Data.TrainRatio == 0 {
		c.Data.TrainRatio = 0.8
	}
	if c.Data.FillMethod == "" {
		c.Data.FillMethod = string(timeseries.Interpolate)
	}
	if len(c.Search.Models) == 0 {
		c.Search.Models = []string{search.ModelARIMA, search.ModelSARIMA}
	}
	if len(c.Search.Granularities) == 0 {
		for _, g := range timeseries.Granularities {
			c.Search.Granularities = append(c.Search.Granularities, g.String())
		}
	}
	if len(c.Results.Sinks) == 0 {
		c.Results.Sinks = []string{SinkCSV}
	}
	if c.Results.MetricsDir == "" {
		c.Results.MetricsDir = "metricas"
	}
	if c.Results.PredictionsDir == "" {
		c.Results.PredictionsDir = "resultados"
	}
	if c.Results.SQLitePath == "" {
		c.Results.SQLitePath = "data/fuelcast.db"
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 0 6 * * 1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that every field parses and lies in range.
func (c *Config) Validate() error {
	if c.Data.TrainRatio <= 0 || c.Data.TrainRatio >= 1 {
		return fmt.Errorf("data.train_ratio must be in (0, 1), got %g", c.Data.TrainRatio)
	}
	if _, err := c.FillMethod(); err != nil {
		return fmt.Errorf("data.fill_method: %w", err)
	}
	if _, err := c.Models(); err != nil {
		return fmt.Errorf("search.models: %w", err)
	}
	if _, err := c.Granularities(); err != nil {
		return fmt.Errorf("search.granularities: %w", err)
	}
	space := c.Space()
	for _, bound := range []int{space.MaxP, space.MaxD, space.MaxQ, space.MaxSP, space.MaxSD, space.MaxSQ} {
		if bound < 0 {
			return fmt.Errorf("search bounds must not be negative")
		}
	}
	for _, kind := range c.Results.Sinks {
		switch kind {
		case SinkCSV, SinkSQLite:
		default:
			return fmt.Errorf("results.sinks: unknown sink %q", kind)
		}
	}
	if _, err := CronParser.Parse(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	return nil
}

// FillMethod returns the parsed NaN strategy.
func (c *Config) FillMethod() (timeseries.FillMethod, error) {
	return timeseries.ParseFillMethod(c.Data.FillMethod)
}

// Models returns the configured model names in canonical form.
func (c *Config) Models() ([]string, error) {
	models := make([]string, 0, len(c.Search.Models))
	for _, m := range c.Search.Models {
		name, err := ParseModel(m)
		if err != nil {
			return nil, err
		}
		models = append(models, name)
	}
	return models, nil
}

// Granularities returns the configured granularities.
func (c *Config) Granularities() ([]timeseries.Granularity, error) {
	out := make([]timeseries.Granularity, 0, len(c.Search.Granularities))
	for _, s := range c.Search.Granularities {
		g, err := timeseries.ParseGranularity(s)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Space returns the search bounds, with unset keys taken from
// search.DefaultSpace.
func (c *Config) Space() search.Space {
	space := search.DefaultSpace()
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	set(&space.MaxP, c.Search.MaxP)
	set(&space.MaxD, c.Search.MaxD)
	set(&space.MaxQ, c.Search.MaxQ)
	set(&space.MaxSP, c.Search.MaxSeasonalP)
	set(&space.MaxSD, c.Search.MaxSeasonalD)
	set(&space.MaxSQ, c.Search.MaxSeasonalQ)
	return space
}

// ParseModel accepts "arima" and "sarima" in any case.
func ParseModel(s string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case search.ModelARIMA:
		return search.ModelARIMA, nil
	case search.ModelSARIMA:
		return search.ModelSARIMA, nil
	}
	return "", fmt.Errorf("unknown model %q", s)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
