package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sartorproj/fuelcast/results"
	"github.com/sartorproj/fuelcast/search"
	"github.com/sartorproj/fuelcast/timeseries"
)

// ErrInputMissing is returned when a raw or processed input file is absent.
// Nothing is written in that case.
var ErrInputMissing = errors.New("input missing")

// ErrUnknownModel is returned for a model name other than ARIMA or SARIMA.
var ErrUnknownModel = errors.New("unknown model")

// Config holds the data locations and search settings of a Pipeline.
type Config struct {
	RawGlob      string
	Product      string
	ProcessedDir string
	TrainRatio   float64
	FillMethod   timeseries.FillMethod
	Space        search.Space
}

// DefaultConfig returns the layout used by the command-line tool.
func DefaultConfig() Config {
	return Config{
		RawGlob:      "data/raw/*.csv",
		Product:      "GASOLINA",
		ProcessedDir: "data/processed",
		TrainRatio:   0.8,
		FillMethod:   timeseries.Interpolate,
		Space:        search.DefaultSpace(),
	}
}

// Pipeline prepares processed data and runs searches whose outcome is
// handed to a results.Sink.
type Pipeline struct {
	cfg    Config
	sink   results.Sink
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Pipeline. A nil sink discards results and a nil logger is
// replaced by a no-op logger.
func New(cfg Config, sink results.Sink, logger *zap.Logger) *Pipeline {
	if sink == nil {
		sink = results.NoopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, sink: sink, logger: logger, now: time.Now}
}

// Prepare reads the raw survey files, averages them per period of every
// granularity and writes the train/test files.
func (p *Pipeline) Prepare(ctx context.Context, granularities ...timeseries.Granularity) error {
	opts := timeseries.DefaultANPOptions()
	if p.cfg.Product != "" {
		opts.Product = p.cfg.Product
	}
	obs, err := timeseries.LoadANP(p.cfg.RawGlob, opts)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputMissing, p.cfg.RawGlob)
		}
		return err
	}
	p.logger.Info("raw observations loaded", zap.Int("count", len(obs)), zap.String("glob", p.cfg.RawGlob))

	for _, g := range granularities {
		if err := ctx.Err(); err != nil {
			return err
		}
		series := timeseries.Resample(obs, g)
		train, test, err := timeseries.Split(series, p.cfg.TrainRatio)
		if err != nil {
			return fmt.Errorf("%s: %w", g, err)
		}
		if err := timeseries.SaveProcessed(p.cfg.ProcessedDir, g, train, test); err != nil {
			return fmt.Errorf("%s: %w", g, err)
		}
		p.logger.Info("processed data saved",
			zap.String("granularity", g.String()),
			zap.Int("train", train.Len()),
			zap.Int("test", test.Len()),
		)
	}
	return nil
}

// Load reads the processed train/test files of g and fills missing values.
// Points the fill method cannot recover, such as leading gaps, are dropped.
func (p *Pipeline) Load(g timeseries.Granularity) (train, test *timeseries.Series, err error) {
	train, test, err = timeseries.LoadProcessed(p.cfg.ProcessedDir, g)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrInputMissing, pathErr.Path)
		}
		return nil, nil, err
	}

	filled, err := timeseries.FillMissing(p.cfg.FillMethod, train, test)
	if err != nil {
		return nil, nil, err
	}
	for i, s := range filled {
		if s.HasMissing() {
			p.logger.Warn("dropping unfilled points",
				zap.String("series", s.Name),
				zap.String("method", string(p.cfg.FillMethod)),
			)
			dropped, _ := timeseries.FillMissing(timeseries.Drop, s)
			filled[i] = dropped[0]
		}
	}
	return filled[0], filled[1], nil
}

// Run searches model over the processed data of g and saves the winning
// metrics and predictions.
func (p *Pipeline) Run(ctx context.Context, model string, g timeseries.Granularity) (*search.Result, error) {
	if model != search.ModelARIMA && model != search.ModelSARIMA {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	runID := results.NewRunID()
	runLog := p.logger.With(zap.String("run_id", runID))

	train, test, err := p.Load(g)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searcher := search.New(search.WithSpace(p.cfg.Space), search.WithLogger(runLog))
	var res *search.Result
	if model == search.ModelSARIMA {
		res, err = searcher.SARIMA(train, test, g)
	} else {
		res, err = searcher.ARIMA(train, test, g)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", model, g, err)
	}

	rec, preds := results.FromResult(runID, res, p.now())
	if err := p.sink.SaveMetrics(ctx, rec); err != nil {
		return res, fmt.Errorf("save metrics: %w", err)
	}
	if err := p.sink.SavePredictions(ctx, preds); err != nil {
		return res, fmt.Errorf("save predictions: %w", err)
	}
	runLog.Info("run finished", zap.String("key", rec.Key()), zap.String("order", rec.Order))
	return res, nil
}

// RunAll runs every (model, granularity) pair in order. A failed pair is
// logged and the remaining pairs still run; the returned error joins every
// failure.
func (p *Pipeline) RunAll(ctx context.Context, models []string, granularities []timeseries.Granularity) ([]*search.Result, error) {
	var (
		out  []*search.Result
		errs error
	)
	for _, g := range granularities {
		for _, m := range models {
			if err := ctx.Err(); err != nil {
				return out, multierr.Append(errs, err)
			}
			res, err := p.Run(ctx, m, g)
			if err != nil {
				p.logger.Error("run failed",
					zap.String("model", m),
					zap.String("granularity", g.String()),
					zap.Error(err),
				)
				errs = multierr.Append(errs, err)
				continue
			}
			out = append(out, res)
		}
	}
	return out, errs
}
