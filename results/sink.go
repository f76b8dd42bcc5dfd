package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sartorproj/fuelcast/search"
)

// ErrInvalidRecord is returned when a record lacks its model or granularity.
var ErrInvalidRecord = errors.New("record needs a model and a granularity")

// MetricsRecord is one row of the consolidated metrics table. At most one
// record exists per Key.
type MetricsRecord struct {
	RunID       string
	Model       string
	Granularity string
	Order       string
	MAE         float64
	RMSE        float64
	R2          float64
	RecordedAt  time.Time

	// Differenced is set when the training prices were differenced before
	// fitting Order; IntegrationOrder then exceeds Order's d by one.
	Differenced      bool
	IntegrationOrder int
	AIC              float64
	LjungBoxP        float64 // NaN when the test could not run
}

// Key identifies the record in the consolidated table, e.g. "ARIMA_monthly".
func (r MetricsRecord) Key() string {
	return Key(r.Model, r.Granularity)
}

// Prediction is one forecast point next to the observed price.
type Prediction struct {
	Time     time.Time
	Actual   float64
	Forecast float64
}

// PredictionSet holds the forecast of one (model, granularity) run.
type PredictionSet struct {
	RunID       string
	Model       string
	Granularity string
	Points      []Prediction
	RecordedAt  time.Time
}

// Key identifies the set, matching MetricsRecord.Key.
func (p PredictionSet) Key() string {
	return Key(p.Model, p.Granularity)
}

// Key joins model and granularity into the record key.
func Key(model, granularity string) string {
	return model + "_" + granularity
}

// NewRunID returns a fresh identifier shared by the records of one run.
func NewRunID() string {
	return uuid.NewString()
}

// FromResult converts a search result into the records persisted by a Sink.
func FromResult(runID string, res *search.Result, at time.Time) (MetricsRecord, PredictionSet) {
	at = at.UTC()
	rec := MetricsRecord{
		RunID:       runID,
		Model:       res.Model,
		Granularity: res.Granularity.String(),
		Order:       res.Candidate().String(),
		MAE:         res.Metrics.MAE,
		RMSE:        res.Metrics.RMSE,
		R2:          res.Metrics.R2,
		RecordedAt:  at,

		Differenced:      res.Differenced,
		IntegrationOrder: res.IntegrationOrder(),
		AIC:              res.Diagnostics.AIC,
		LjungBoxP:        res.Diagnostics.LjungBoxP,
	}
	set := PredictionSet{
		RunID:       runID,
		Model:       res.Model,
		Granularity: rec.Granularity,
		RecordedAt:  at,
	}
	if res.Forecast != nil && res.Actual != nil {
		set.Points = make([]Prediction, res.Forecast.Len())
		for i := range set.Points {
			set.Points[i] = Prediction{
				Time:     res.Forecast.Timestamps[i],
				Actual:   res.Actual.Values[i],
				Forecast: res.Forecast.Values[i],
			}
		}
	}
	return rec, set
}

// Sink persists evaluation metrics and predictions.
type Sink interface {
	// SaveMetrics replaces the record with the same key, or appends it.
	SaveMetrics(ctx context.Context, rec MetricsRecord) error
	// SavePredictions replaces every stored point of the set's key.
	SavePredictions(ctx context.Context, set PredictionSet) error
	// LoadMetrics returns every stored record.
	LoadMetrics(ctx context.Context) ([]MetricsRecord, error)
	Close() error
}

func validate(model, granularity string) error {
	if model == "" || granularity == "" {
		return fmt.Errorf("%q/%q: %w", model, granularity, ErrInvalidRecord)
	}
	return nil
}

// NoopSink discards everything.
type NoopSink struct{}

func (NoopSink) SaveMetrics(context.Context, MetricsRecord) error     { return nil }
func (NoopSink) SavePredictions(context.Context, PredictionSet) error { return nil }
func (NoopSink) LoadMetrics(context.Context) ([]MetricsRecord, error) { return nil, nil }
func (NoopSink) Close() error                                         { return nil }

// MultiSink writes to every sink in order. Reads come from the first sink.
type MultiSink []Sink

func (m MultiSink) SaveMetrics(ctx context.Context, rec MetricsRecord) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.SaveMetrics(ctx, rec))
	}
	return err
}

func (m MultiSink) SavePredictions(ctx context.Context, set PredictionSet) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.SavePredictions(ctx, set))
	}
	return err
}

func (m MultiSink) LoadMetrics(ctx context.Context) ([]MetricsRecord, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].LoadMetrics(ctx)
}

func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}
