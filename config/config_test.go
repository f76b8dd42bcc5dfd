package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sartorproj/fuelcast/search"
	"github.com/sartorproj/fuelcast/timeseries"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}

	if cfg.Data.TrainRatio != 0.8 || cfg.Data.ProcessedDir != "data/processed" {
		t.Errorf("Unexpected data defaults %+v", cfg.Data)
	}
	models, _ := cfg.Models()
	if len(models) != 2 || models[0] != search.ModelARIMA || models[1] != search.ModelSARIMA {
		t.Errorf("Unexpected models %v", models)
	}
	grans, _ := cfg.Granularities()
	if len(grans) != 3 || grans[0] != timeseries.Daily || grans[2] != timeseries.Monthly {
		t.Errorf("Unexpected granularities %v", grans)
	}
	if cfg.Space() != search.DefaultSpace() {
		t.Errorf("Unexpected space %+v", cfg.Space())
	}
	if len(cfg.Results.Sinks) != 1 || cfg.Results.Sinks[0] != SinkCSV {
		t.Errorf("Unexpected sinks %v", cfg.Results.Sinks)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "fuelcast.yaml", `
data:
  processed_dir: /tmp/processed
  fill_method: ffill
search:
  models: [sarima]
  granularities: [mensal]
  max_p: 0
  max_seasonal_q: 0
results:
  sinks: [sqlite]
schedule:
  cron: "@daily"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Data.ProcessedDir != "/tmp/processed" {
		t.Errorf("Unexpected processed dir %q", cfg.Data.ProcessedDir)
	}
	if m, _ := cfg.FillMethod(); m != timeseries.ForwardFill {
		t.Errorf("Expected ffill, got %q", m)
	}
	if grans, _ := cfg.Granularities(); len(grans) != 1 || grans[0] != timeseries.Monthly {
		t.Errorf("Unexpected granularities %v", grans)
	}
	// Explicit zeros survive, unset bounds keep their defaults.
	space := cfg.Space()
	if space.MaxP != 0 || space.MaxSQ != 0 || space.MaxQ != 2 || space.MaxSD != 1 {
		t.Errorf("Unexpected space %+v", space)
	}
	if cfg.Data.TrainRatio != 0.8 {
		t.Errorf("Default train ratio not applied: %g", cfg.Data.TrainRatio)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "fuelcast.yaml", "data:\n  processed_dir: from-file\n")
	t.Setenv("FUELCAST_PROCESSED_DIR", "from-env")
	t.Setenv("FUELCAST_TRAIN_RATIO", "0.75")
	t.Setenv("FUELCAST_SINKS", "csv, sqlite")
	t.Setenv("FUELCAST_MODELS", "arima")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Data.ProcessedDir != "from-env" {
		t.Errorf("Expected env override, got %q", cfg.Data.ProcessedDir)
	}
	if cfg.Data.TrainRatio != 0.75 {
		t.Errorf("Expected 0.75, got %g", cfg.Data.TrainRatio)
	}
	if len(cfg.Results.Sinks) != 2 || cfg.Results.Sinks[1] != SinkSQLite {
		t.Errorf("Unexpected sinks %v", cfg.Results.Sinks)
	}
	if len(cfg.Search.Models) != 1 {
		t.Errorf("Unexpected models %v", cfg.Search.Models)
	}

	t.Setenv("FUELCAST_TRAIN_RATIO", "eighty")
	if _, err := Load(path); err == nil {
		t.Error("Expected an error for a malformed train ratio")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "data: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"train ratio", func(c *Config) { c.Data.TrainRatio = 1 }},
		{"fill method", func(c *Config) { c.Data.FillMethod = "spline" }},
		{"model", func(c *Config) { c.Search.Models = []string{"prophet"} }},
		{"granularity", func(c *Config) { c.Search.Granularities = []string{"hourly"} }},
		{"bound", func(c *Config) { n := -1; c.Search.MaxQ = &n }},
		{"sink", func(c *Config) { c.Results.Sinks = []string{"mongo"} }},
		{"cron", func(c *Config) { c.Schedule.Cron = "every monday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected %s to be rejected", tt.name)
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("FUELCAST_CONFIG", "")
	if got := Path(""); got != DefaultPath {
		t.Errorf("Expected %s, got %s", DefaultPath, got)
	}
	t.Setenv("FUELCAST_CONFIG", "/etc/fuelcast.yaml")
	if got := Path(""); got != "/etc/fuelcast.yaml" {
		t.Errorf("Expected env path, got %s", got)
	}
	if got := Path("custom.yaml"); got != "custom.yaml" {
		t.Errorf("Explicit path should win, got %s", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "FUELCAST_TEST_DOTENV=from-dotenv\nFUELCAST_TEST_PRESET=from-dotenv\n")
	t.Setenv("FUELCAST_TEST_PRESET", "preset")
	t.Cleanup(func() { os.Unsetenv("FUELCAST_TEST_DOTENV") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("FUELCAST_TEST_DOTENV"); got != "from-dotenv" {
		t.Errorf("Expected value from .env, got %q", got)
	}
	if got := os.Getenv("FUELCAST_TEST_PRESET"); got != "preset" {
		t.Errorf("Existing variables must win, got %q", got)
	}
}

func TestParseModel(t *testing.T) {
	for in, want := range map[string]string{"arima": search.ModelARIMA, " SARIMA ": search.ModelSARIMA} {
		got, err := ParseModel(in)
		if err != nil || got != want {
			t.Errorf("ParseModel(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseModel("prophet"); err == nil {
		t.Error("Expected an error for an unsupported model")
	}
}
