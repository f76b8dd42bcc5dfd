package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sartorproj/fuelcast/timeseries"
)

// MetricsFileName is the consolidated metrics file written by CSVSink.
const MetricsFileName = "resultados_modelos.csv"

var (
	metricsHeader = []string{
		"Modelo", "Granularidade", "MAE", "RMSE", "R²", "Ordem", "RunID", "Registrado",
		"Diferenciado", "Integracao", "AIC", "LjungBox_p",
	}
	predictionsHeader = []string{"Data", "Preco_Real", "Previsao"}
)

// CSVSink keeps one consolidated metrics file and one predictions file per
// (model, granularity).
type CSVSink struct {
	metricsPath    string
	predictionsDir string
	logger         *zap.Logger

	mu sync.Mutex
}

// NewCSVSink creates both directories if needed.
func NewCSVSink(metricsDir, predictionsDir string, logger *zap.Logger) (*CSVSink, error) {
	for _, dir := range []string{metricsDir, predictionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSink{
		metricsPath:    filepath.Join(metricsDir, MetricsFileName),
		predictionsDir: predictionsDir,
		logger:         logger,
	}, nil
}

// MetricsPath returns the consolidated metrics file path.
func (s *CSVSink) MetricsPath() string { return s.metricsPath }

// PredictionsPath returns the predictions file path for a key.
func (s *CSVSink) PredictionsPath(model, granularity string) string {
	return filepath.Join(s.predictionsDir, Key(model, granularity)+"_predictions.csv")
}

func (s *CSVSink) SaveMetrics(ctx context.Context, rec MetricsRecord) error {
	if err := validate(rec.Model, rec.Granularity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readMetrics()
	if err != nil {
		return err
	}
	key := rec.Key()
	kept := existing[:0]
	for _, r := range existing {
		if r.Key() != key {
			kept = append(kept, r)
		}
	}
	kept = append(kept, rec)

	rows := make([][]string, 0, len(kept)+1)
	rows = append(rows, metricsHeader)
	for _, r := range kept {
		rows = append(rows, []string{
			r.Key(),
			r.Granularity,
			formatFloat(r.MAE),
			formatFloat(r.RMSE),
			formatFloat(r.R2),
			r.Order,
			r.RunID,
			r.RecordedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(r.Differenced),
			strconv.Itoa(r.IntegrationOrder),
			formatFloat(r.AIC),
			formatFloat(r.LjungBoxP),
		})
	}
	if err := writeFileAtomic(s.metricsPath, rows); err != nil {
		return err
	}
	s.logger.Info("metrics saved",
		zap.String("key", key),
		zap.String("path", s.metricsPath),
		zap.Int("records", len(kept)),
	)
	return nil
}

func (s *CSVSink) SavePredictions(ctx context.Context, set PredictionSet) error {
	if err := validate(set.Model, set.Granularity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([][]string, 0, len(set.Points)+1)
	rows = append(rows, predictionsHeader)
	for _, p := range set.Points {
		rows = append(rows, []string{
			p.Time.Format(timeseries.ProcessedDateFormat),
			formatFloat(p.Actual),
			formatFloat(p.Forecast),
		})
	}

	path := s.PredictionsPath(set.Model, set.Granularity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(path, rows); err != nil {
		return err
	}
	s.logger.Info("predictions saved", zap.String("path", path), zap.Int("points", len(set.Points)))
	return nil
}

func (s *CSVSink) LoadMetrics(ctx context.Context) ([]MetricsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMetrics()
}

func (s *CSVSink) Close() error { return nil }

// readMetrics returns no records when the file does not exist yet.
func (s *CSVSink) readMetrics() ([]MetricsRecord, error) {
	f, err := os.Open(s.metricsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := ReadMetricsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.metricsPath, err)
	}
	return recs, nil
}

// ReadMetricsCSV parses a consolidated metrics file. Files holding only the
// first five columns are accepted; a missing Ljung-Box column reads as NaN.
func ReadMetricsCSV(r io.Reader) ([]MetricsRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("metrics header has %d columns, want at least 5", len(header))
	}

	var recs []MetricsRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("line %d: %d columns", line, len(row))
		}
		rec := MetricsRecord{
			Granularity: row[1],
			Model:       strings.TrimSuffix(row[0], "_"+row[1]),
			LjungBoxP:   math.NaN(),
		}
		for i, dst := range []*float64{&rec.MAE, &rec.RMSE, &rec.R2} {
			if *dst, err = strconv.ParseFloat(row[2+i], 64); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, header[2+i], err)
			}
		}
		if len(row) > 5 {
			rec.Order = row[5]
		}
		if len(row) > 6 {
			rec.RunID = row[6]
		}
		if len(row) > 7 && row[7] != "" {
			if rec.RecordedAt, err = time.Parse(time.RFC3339, row[7]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if err := readDiagnostics(&rec, row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// readDiagnostics fills the optional columns after Registrado.
func readDiagnostics(rec *MetricsRecord, row []string) error {
	var err error
	if len(row) > 8 && row[8] != "" {
		if rec.Differenced, err = strconv.ParseBool(row[8]); err != nil {
			return err
		}
	}
	if len(row) > 9 && row[9] != "" {
		if rec.IntegrationOrder, err = strconv.Atoi(row[9]); err != nil {
			return err
		}
	}
	if len(row) > 10 && row[10] != "" {
		if rec.AIC, err = strconv.ParseFloat(row[10], 64); err != nil {
			return err
		}
	}
	if len(row) > 11 && row[11] != "" {
		if rec.LjungBoxP, err = strconv.ParseFloat(row[11], 64); err != nil {
			return err
		}
	}
	return nil
}

// writeFileAtomic writes rows to a temporary file next to path and renames
// it over path.
func writeFileAtomic(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
