package search

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sartorproj/fuelcast/arima"
	"github.com/sartorproj/fuelcast/metrics"
	"github.com/sartorproj/fuelcast/sarima"
	"github.com/sartorproj/fuelcast/stats"
	"github.com/sartorproj/fuelcast/timeseries"
)

// Model names used in results and logs.
const (
	ModelARIMA  = "ARIMA"
	ModelSARIMA = "SARIMA"
)

// Result is the outcome of one grid search.
type Result struct {
	Model         string
	Granularity   timeseries.Granularity
	Order         Order
	SeasonalOrder *SeasonalOrder // nil for ARIMA

	// Forecast and Actual share the test timestamps that survived removal
	// of non-finite forecast points.
	Forecast *timeseries.Series
	Actual   *timeseries.Series
	Metrics  metrics.Metrics

	// Differenced reports whether the training series was differenced once
	// before fitting. Forecasts are always on the price scale.
	Differenced bool

	// Diagnostics describe the refitted winner; they do not affect which
	// candidate wins.
	Diagnostics Diagnostics

	Evaluated int // candidates that produced a score
	Skipped   int // candidates that failed to fit, forecast or score
	Elapsed   time.Duration
}

// IntegrationOrder is the total number of first differences applied to the
// prices: the model's d plus the optional pre-differencing step.
func (r *Result) IntegrationOrder() int {
	if r.Differenced {
		return r.Order.D + 1
	}
	return r.Order.D
}

// Diagnostics are the information criteria and residual test of a fit.
// LjungBoxQ and LjungBoxP are NaN when the residuals are too short or
// constant.
type Diagnostics struct {
	AIC       float64
	BIC       float64
	LjungBoxQ float64
	LjungBoxP float64
}

// LjungBoxLags is the number of residual autocorrelations tested.
const LjungBoxLags = 10

// Candidate returns the winning grid point.
func (r *Result) Candidate() Candidate {
	return Candidate{Order: r.Order, Seasonal: r.SeasonalOrder}
}

// Searcher runs exhaustive grid searches scored by test-set RMSE.
type Searcher struct {
	space       Space
	logger      *zap.Logger
	differencer stats.Differencer
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithSpace replaces the default grid bounds.
func WithSpace(space Space) Option {
	return func(s *Searcher) { s.space = space }
}

// WithLogger sets the logger used for per-candidate and summary messages.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStationarityCheck replaces the ADF/KPSS verdict used to decide
// whether the training series is differenced.
func WithStationarityCheck(check func(*timeseries.Series) bool) Option {
	return func(s *Searcher) { s.differencer.Check = check }
}

// New returns a Searcher over DefaultSpace.
func New(opts ...Option) *Searcher {
	s := &Searcher{
		space:  DefaultSpace(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ARIMA searches the non-seasonal grid with a default Searcher.
func ARIMA(train, test *timeseries.Series, g timeseries.Granularity, opts ...Option) (*Result, error) {
	return New(opts...).ARIMA(train, test, g)
}

// SARIMA searches the seasonal grid with a default Searcher.
func SARIMA(train, test *timeseries.Series, g timeseries.Granularity, opts ...Option) (*Result, error) {
	return New(opts...).SARIMA(train, test, g)
}

// ARIMA fits every non-seasonal candidate on train, scores its forecast
// against test and refits the lowest-RMSE order.
func (s *Searcher) ARIMA(train, test *timeseries.Series, g timeseries.Granularity) (*Result, error) {
	fallback := Candidate{Order: FallbackOrder}
	return s.run(ModelARIMA, train, test, g, s.space.ARIMACandidates(), fallback)
}

// SARIMA is ARIMA over the seasonal grid, with the seasonal period taken
// from g. Candidates are fitted without stationarity or invertibility
// enforcement.
func (s *Searcher) SARIMA(train, test *timeseries.Series, g timeseries.Granularity) (*Result, error) {
	period := g.SeasonalPeriod()
	seasonal := FallbackSeasonal(period)
	fallback := Candidate{Order: FallbackOrder, Seasonal: &seasonal}
	return s.run(ModelSARIMA, train, test, g, s.space.SARIMACandidates(period), fallback)
}

func (s *Searcher) run(model string, train, test *timeseries.Series, g timeseries.Granularity,
	candidates []Candidate, fallback Candidate) (*Result, error) {
	start := time.Now()
	log := s.logger.With(zap.String("model", model), zap.String("granularity", g.String()))

	if err := metrics.ValidateTest(test); err != nil {
		return nil, err
	}
	if train == nil || train.Len() == 0 {
		return nil, fmt.Errorf("training series: %w", stats.ErrEmptySeries)
	}

	// Difference once, before the loop; the result is not re-tested.
	work, differenced := s.differencer.Apply(train)
	last := train.Last()
	if differenced {
		log.Info("training series differenced", zap.Int("points", work.Len()))
	}

	best, bestRMSE := fallback, math.Inf(1)
	evaluated, skipped := 0, 0
	for _, c := range candidates {
		ev, err := s.evaluate(c, work, test, differenced, last)
		if err != nil {
			skipped++
			log.Warn("candidate skipped", zap.Stringer("candidate", c), zap.Error(err))
			continue
		}
		evaluated++
		log.Debug("candidate evaluated", zap.Stringer("candidate", c), zap.Float64("rmse", ev.metrics.RMSE))
		if ev.metrics.RMSE < bestRMSE {
			best, bestRMSE = c, ev.metrics.RMSE
		}
	}

	// Refit the winner on the same training series.
	ev, err := s.evaluate(best, work, test, differenced, last)
	if err != nil {
		return nil, fmt.Errorf("refit %s: %w", best, err)
	}
	m := ev.metrics

	res := &Result{
		Model:         model,
		Granularity:   g,
		Order:         best.Order,
		SeasonalOrder: best.Seasonal,
		Forecast:      ev.predicted,
		Actual:        ev.actual,
		Metrics:       m,
		Differenced:   differenced,
		Diagnostics:   diagnose(ev.model),
		Evaluated:     evaluated,
		Skipped:       skipped,
		Elapsed:       time.Since(start),
	}
	log.Info("search finished",
		zap.Stringer("best", best),
		zap.Float64("mae", m.MAE),
		zap.Float64("rmse", m.RMSE),
		zap.Float64("r2", m.R2),
		zap.Float64("aic", res.Diagnostics.AIC),
		zap.Float64("ljung_box_p", res.Diagnostics.LjungBoxP),
		zap.Int("evaluated", evaluated),
		zap.Int("skipped", skipped),
		zap.Bool("differenced", differenced),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// forecaster is a fitted *arima.Model or *sarima.Model.
type forecaster interface {
	Predict(steps int) ([]float64, error)
}

type evaluation struct {
	actual, predicted *timeseries.Series
	metrics           metrics.Metrics
	model             forecaster
}

// evaluate fits c on work, forecasts len(test) steps, moves the forecast
// back to the price scale when work is differenced and scores it.
func (s *Searcher) evaluate(c Candidate, work, test *timeseries.Series, differenced bool,
	last float64) (*evaluation, error) {
	model, err := fit(c, work)
	if err != nil {
		return nil, err
	}
	forecast, err := model.Predict(test.Len())
	if err != nil {
		return nil, err
	}
	if differenced {
		forecast = stats.Integrate(forecast, last)
	}
	actual, predicted, m, err := metrics.Score(test, forecast)
	if err != nil {
		return nil, err
	}
	return &evaluation{actual: actual, predicted: predicted, metrics: m, model: model}, nil
}

func fit(c Candidate, train *timeseries.Series) (forecaster, error) {
	o := c.Order
	if c.Seasonal == nil {
		model := arima.New(o.P, o.D, o.Q)
		if err := model.Fit(train); err != nil {
			return nil, err
		}
		return model, nil
	}

	so := c.Seasonal
	model := sarima.New(o.P, o.D, o.Q, so.P, so.D, so.Q, so.S)
	model.EnforceStationarity = false
	model.EnforceInvertibility = false
	if err := model.Fit(train); err != nil {
		return nil, err
	}
	return model, nil
}

func diagnose(model forecaster) Diagnostics {
	var (
		d  = Diagnostics{LjungBoxQ: math.NaN(), LjungBoxP: math.NaN()}
		lb *stats.LjungBoxResult
	)
	switch m := model.(type) {
	case *arima.Model:
		sum := m.Summary(LjungBoxLags)
		d.AIC, d.BIC, lb = sum.AIC, sum.BIC, sum.LjungBox
	case *sarima.Model:
		sum := m.Summary(LjungBoxLags)
		d.AIC, d.BIC, lb = sum.AIC, sum.BIC, sum.LjungBox
	}
	if lb != nil {
		d.LjungBoxQ, d.LjungBoxP = lb.Statistic, lb.PValue
	}
	return d
}
