package results

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sartorproj/fuelcast/metrics"
	"github.com/sartorproj/fuelcast/search"
	"github.com/sartorproj/fuelcast/timeseries"
)

func record(model, granularity string, rmse float64) MetricsRecord {
	return MetricsRecord{
		RunID:       NewRunID(),
		Model:       model,
		Granularity: granularity,
		Order:       "ARIMA(1,1,1)",
		MAE:         rmse / 2,
		RMSE:        rmse,
		R2:          0.5,
		RecordedAt:  time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),

		Differenced:      true,
		IntegrationOrder: 2,
		AIC:              -12.5,
		LjungBoxP:        0.25,
	}
}

func predictionSet(model, granularity string, n int) PredictionSet {
	set := PredictionSet{RunID: NewRunID(), Model: model, Granularity: granularity,
		RecordedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}
	for i := 0; i < n; i++ {
		set.Points = append(set.Points, Prediction{
			Time:     time.Date(2024, time.January, 1+i, 0, 0, 0, 0, time.UTC),
			Actual:   5 + float64(i)/2,
			Forecast: 5.25 + float64(i)/2,
		})
	}
	return set
}

func TestFromResult(t *testing.T) {
	ts := []time.Time{
		time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
	}
	actual, _ := timeseries.NewWithTimestamps(ts, []float64{5.1, 5.2})
	forecast, _ := timeseries.NewWithTimestamps(ts, []float64{5.0, 5.3})
	res := &search.Result{
		Model:         search.ModelSARIMA,
		Granularity:   timeseries.Monthly,
		Order:         search.Order{P: 1, D: 1, Q: 0},
		SeasonalOrder: &search.SeasonalOrder{P: 0, D: 1, Q: 1, S: 12},
		Actual:        actual,
		Forecast:      forecast,
		Metrics:       metrics.Metrics{MAE: 0.1, RMSE: 0.1, R2: -1},
		Differenced:   true,
		Diagnostics:   search.Diagnostics{AIC: 42, BIC: 45, LjungBoxQ: 3, LjungBoxP: 0.5},
	}

	rec, set := FromResult("run-1", res, ts[1])
	if rec.Key() != "SARIMA_monthly" || set.Key() != "SARIMA_monthly" {
		t.Errorf("Unexpected keys %q, %q", rec.Key(), set.Key())
	}
	if rec.Order != "SARIMA(1,1,0)x(0,1,1,12)" {
		t.Errorf("Unexpected order %q", rec.Order)
	}
	if rec.RMSE != 0.1 || rec.R2 != -1 || rec.RunID != "run-1" {
		t.Errorf("Unexpected record %+v", rec)
	}
	// The pre-differencing step is not part of the order string.
	if !rec.Differenced || rec.IntegrationOrder != 2 {
		t.Errorf("Expected a differenced record with integration order 2, got %v/%d", rec.Differenced, rec.IntegrationOrder)
	}
	if rec.AIC != 42 || rec.LjungBoxP != 0.5 {
		t.Errorf("Diagnostics not carried over: %+v", rec)
	}
	if len(set.Points) != 2 || set.Points[1].Actual != 5.2 || set.Points[1].Forecast != 5.3 {
		t.Errorf("Unexpected points %+v", set.Points)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b || len(a) != 36 {
		t.Errorf("Expected distinct UUIDs, got %q and %q", a, b)
	}
}

func TestCSVSinkReplacesByKey(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(filepath.Join(dir, "metricas"), filepath.Join(dir, "resultados"), nil)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	ctx := context.Background()

	for _, rec := range []MetricsRecord{
		record("ARIMA", "monthly", 0.3),
		record("SARIMA", "monthly", 0.2),
		record("ARIMA", "monthly", 0.1),
	} {
		if err := sink.SaveMetrics(ctx, rec); err != nil {
			t.Fatalf("SaveMetrics: %v", err)
		}
	}

	recs, err := sink.LoadMetrics(ctx)
	if err != nil {
		t.Fatalf("LoadMetrics: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	// The replaced record moves to the end.
	if recs[0].Key() != "SARIMA_monthly" || recs[1].Key() != "ARIMA_monthly" {
		t.Errorf("Unexpected order: %s, %s", recs[0].Key(), recs[1].Key())
	}
	if recs[1].RMSE != 0.1 || recs[1].MAE != 0.05 {
		t.Errorf("Expected the newest ARIMA metrics, got %+v", recs[1])
	}
	if recs[1].Order != "ARIMA(1,1,1)" || !recs[1].RecordedAt.Equal(record("", "", 0).RecordedAt) {
		t.Errorf("Extra columns not read back: %+v", recs[1])
	}
	if !recs[1].Differenced || recs[1].IntegrationOrder != 2 || recs[1].AIC != -12.5 || recs[1].LjungBoxP != 0.25 {
		t.Errorf("Diagnostic columns not read back: %+v", recs[1])
	}

	data, err := os.ReadFile(sink.MetricsPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Modelo,Granularidade,MAE,RMSE,R²") {
		t.Errorf("Unexpected header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}
}

func TestCSVSinkPredictions(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := sink.SavePredictions(ctx, predictionSet("ARIMA", "daily", 5)); err != nil {
		t.Fatalf("SavePredictions: %v", err)
	}
	if err := sink.SavePredictions(ctx, predictionSet("ARIMA", "daily", 2)); err != nil {
		t.Fatalf("SavePredictions: %v", err)
	}

	path := sink.PredictionsPath("ARIMA", "daily")
	if filepath.Base(path) != "ARIMA_daily_predictions.csv" {
		t.Errorf("Unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Data,Preco_Real,Previsao\n2024-01-01,5,5.25\n2024-01-02,5.5,5.75\n"
	if string(data) != want {
		t.Errorf("Unexpected file:\n%s", data)
	}
}

func TestCSVSinkRejectsIncompleteRecord(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir(), t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	err = sink.SaveMetrics(context.Background(), record("ARIMA", "", 1))
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord, got %v", err)
	}
	if _, err := os.Stat(sink.MetricsPath()); !errors.Is(err, os.ErrNotExist) {
		t.Error("Nothing should be written for an invalid record")
	}
}

func TestReadMetricsCSVFiveColumns(t *testing.T) {
	in := "Modelo,Granularidade,MAE,RMSE,R²\nARIMA_weekly,weekly,0.1,0.2,0.9\n"
	recs, err := ReadMetricsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadMetricsCSV: %v", err)
	}
	if len(recs) != 1 || recs[0].Model != "ARIMA" || recs[0].Granularity != "weekly" || recs[0].R2 != 0.9 {
		t.Errorf("Unexpected records %+v", recs)
	}
	if recs[0].Differenced || !math.IsNaN(recs[0].LjungBoxP) {
		t.Errorf("Missing diagnostic columns should read as defaults, got %+v", recs[0])
	}

	if _, err := ReadMetricsCSV(strings.NewReader(in + "X,weekly,abc,1,1\n")); err == nil {
		t.Error("Expected an error for a non-numeric MAE")
	}
}

func TestSQLiteSinkUpsert(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "fuelcast.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open sink: %v", err)
	}
	defer sink.Close()
	ctx := context.Background()

	first := record("ARIMA", "weekly", 0.4)
	second := record("ARIMA", "weekly", 0.2)
	second.Order = "ARIMA(2,1,0)"
	for _, rec := range []MetricsRecord{first, record("SARIMA", "weekly", 0.3), second} {
		if err := sink.SaveMetrics(ctx, rec); err != nil {
			t.Fatalf("SaveMetrics: %v", err)
		}
	}

	recs, err := sink.LoadMetrics(ctx)
	if err != nil {
		t.Fatalf("LoadMetrics: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	got := recs[0]
	if got.Key() != "ARIMA_weekly" || got.RMSE != 0.2 || got.Order != "ARIMA(2,1,0)" || got.RunID != second.RunID {
		t.Errorf("Expected the upserted record, got %+v", got)
	}
	if !got.RecordedAt.Equal(second.RecordedAt) {
		t.Errorf("Expected recorded time %v, got %v", second.RecordedAt, got.RecordedAt)
	}
	if !got.Differenced || got.IntegrationOrder != 2 || got.AIC != -12.5 || got.LjungBoxP != 0.25 {
		t.Errorf("Diagnostics not stored: %+v", got)
	}
}

func TestSQLiteSinkNonFiniteDiagnostics(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "fuelcast.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	ctx := context.Background()

	rec := record("ARIMA", "daily", 0.1)
	rec.AIC = math.Inf(1)
	rec.LjungBoxP = math.NaN()
	if err := sink.SaveMetrics(ctx, rec); err != nil {
		t.Fatalf("SaveMetrics: %v", err)
	}
	recs, err := sink.LoadMetrics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || !math.IsNaN(recs[0].AIC) || !math.IsNaN(recs[0].LjungBoxP) {
		t.Errorf("Expected non-finite diagnostics to read back as NaN, got %+v", recs)
	}
}

func TestSQLiteSinkMigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fuelcast.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE model_metrics (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		model       TEXT NOT NULL,
		granularity TEXT NOT NULL,
		model_order TEXT,
		mae         REAL,
		rmse        REAL,
		r2          REAL,
		recorded_at INTEGER NOT NULL,
		UNIQUE(model, granularity)
	)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO model_metrics
		(run_id, model, granularity, model_order, mae, rmse, r2, recorded_at)
		VALUES ('old', 'ARIMA', 'monthly', 'ARIMA(1,1,1)', 0.1, 0.2, 0.3, 0)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	sink, err := NewSQLiteSink(path, nil)
	if err != nil {
		t.Fatalf("Failed to open an old database: %v", err)
	}
	defer sink.Close()
	ctx := context.Background()

	recs, err := sink.LoadMetrics(ctx)
	if err != nil {
		t.Fatalf("LoadMetrics: %v", err)
	}
	if len(recs) != 1 || recs[0].RunID != "old" || recs[0].Differenced || !math.IsNaN(recs[0].AIC) {
		t.Errorf("Unexpected migrated record %+v", recs)
	}

	if err := sink.SaveMetrics(ctx, record("ARIMA", "monthly", 0.05)); err != nil {
		t.Fatalf("SaveMetrics after migration: %v", err)
	}
	recs, _ = sink.LoadMetrics(ctx)
	if len(recs) != 1 || recs[0].IntegrationOrder != 2 {
		t.Errorf("Expected the upserted record with diagnostics, got %+v", recs)
	}
}

func TestSQLiteSinkPredictions(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "fuelcast.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	ctx := context.Background()

	for _, set := range []PredictionSet{
		predictionSet("SARIMA", "daily", 7),
		predictionSet("ARIMA", "daily", 4),
		predictionSet("SARIMA", "daily", 3),
	} {
		if err := sink.SavePredictions(ctx, set); err != nil {
			t.Fatalf("SavePredictions: %v", err)
		}
	}

	points, err := sink.LoadPredictions(ctx, "SARIMA", "daily")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("Expected the 3 newest points, got %d", len(points))
	}
	if !points[2].Time.Equal(time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)) || points[2].Actual != 6 {
		t.Errorf("Unexpected last point %+v", points[2])
	}

	other, err := sink.LoadPredictions(ctx, "ARIMA", "daily")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 4 {
		t.Errorf("Other keys must be untouched, got %d points", len(other))
	}
}

type failingSink struct {
	NoopSink
	err error
}

func (f failingSink) SaveMetrics(context.Context, MetricsRecord) error { return f.err }

func TestMultiSink(t *testing.T) {
	dir := t.TempDir()
	csvSink, err := NewCSVSink(dir, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	multi := MultiSink{csvSink, failingSink{err: boom}, NoopSink{}}
	ctx := context.Background()

	err = multi.SaveMetrics(ctx, record("ARIMA", "daily", 1))
	if !errors.Is(err, boom) {
		t.Errorf("Expected the failing sink's error, got %v", err)
	}
	// The CSV sink still received the record.
	recs, err := multi.LoadMetrics(ctx)
	if err != nil || len(recs) != 1 {
		t.Errorf("Expected 1 record from the first sink, got %d (%v)", len(recs), err)
	}
	if err := multi.SavePredictions(ctx, predictionSet("ARIMA", "daily", 1)); err != nil {
		t.Errorf("SavePredictions: %v", err)
	}
	if err := multi.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
