package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeFixture lays out raw survey data and a config pointing into dir.
func writeFixture(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	raw := filepath.Join(dir, "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	b.WriteString("Produto;Data da Coleta;Valor de Venda\n")
	for i := 0; i < 60; i++ {
		day := time.Date(2019, time.Month(1+i), 10, 0, 0, 0, 0, time.UTC)
		price := 4.5 + float64(i)/50 + float64(i%4)/20
		fmt.Fprintf(&b, "GASOLINA;%s;%s\n", day.Format("02/01/2006"),
			strings.Replace(fmt.Sprintf("%.3f", price), ".", ",", 1))
	}
	if err := os.WriteFile(filepath.Join(raw, "precos.csv"), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := fmt.Sprintf(`data:
  raw_glob: %s
  processed_dir: %s
search:
  models: [arima]
  granularities: [monthly]
  max_p: 1
  max_q: 1
results:
  sinks: [csv, sqlite]
  metrics_dir: %s
  predictions_dir: %s
  sqlite_path: %s
log:
  level: error
`,
		filepath.Join(raw, "*.csv"),
		filepath.Join(dir, "processed"),
		filepath.Join(dir, "metricas"),
		filepath.Join(dir, "resultados"),
		filepath.Join(dir, "fuelcast.db"),
	)
	cfgPath = filepath.Join(dir, "fuelcast.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, cfgPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	base := []string{"-env", filepath.Join(t.TempDir(), "absent.env")}
	err := run(context.Background(), append(base, args...), &out)
	return out.String(), err
}

func TestPrepareRunMetrics(t *testing.T) {
	dir, cfgPath := writeFixture(t)

	if _, err := runCLI(t, "-config", cfgPath, "prepare"); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "processed", "train_data_monthly.csv")); err != nil {
		t.Fatalf("Train file missing: %v", err)
	}

	out, err := runCLI(t, "-config", cfgPath, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "ARIMA") || !strings.Contains(out, "monthly") {
		t.Errorf("Unexpected run output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "resultados", "ARIMA_monthly_predictions.csv")); err != nil {
		t.Errorf("Predictions file missing: %v", err)
	}

	out, err = runCLI(t, "-config", cfgPath, "metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if !strings.Contains(out, "ARIMA_monthly") {
		t.Errorf("Metrics table should list ARIMA_monthly:\n%s", out)
	}

	out, err = runCLI(t, "-config", cfgPath, "stationarity", "-granularity", "mensal")
	if err != nil {
		t.Fatalf("stationarity: %v", err)
	}
	if !strings.Contains(out, "stationary: ") {
		t.Errorf("Unexpected stationarity output:\n%s", out)
	}
}

func TestRunMissingInput(t *testing.T) {
	_, cfgPath := writeFixture(t)
	_, err := runCLI(t, "-config", cfgPath, "run", "-granularity", "weekly")
	if err == nil || !strings.Contains(err.Error(), "input missing") {
		t.Errorf("Expected an input-missing error, got %v", err)
	}
}

func TestMetricsEmpty(t *testing.T) {
	_, cfgPath := writeFixture(t)
	out, err := runCLI(t, "-config", cfgPath, "metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if !strings.Contains(out, "no metrics recorded yet") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestUsageErrors(t *testing.T) {
	_, cfgPath := writeFixture(t)

	if _, err := runCLI(t, "-config", cfgPath); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("Expected flag.ErrHelp without a command, got %v", err)
	}
	if _, err := runCLI(t, "-config", cfgPath, "plot"); err == nil {
		t.Error("Expected an error for an unknown command")
	}
	if _, err := runCLI(t, "-config", cfgPath, "run", "-model", "prophet"); err == nil {
		t.Error("Expected an error for an unsupported model")
	}
}
