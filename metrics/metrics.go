package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/fuelcast/timeseries"
)

var (
	// ErrLengthMismatch is returned when paired inputs differ in length or a
	// series has more values than timestamps (or the reverse).
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrEmpty is returned when no point is left to score.
	ErrEmpty = errors.New("no points to evaluate")
)

// Metrics holds the accuracy of one forecast.
type Metrics struct {
	MAE  float64
	RMSE float64
	R2   float64
}

// ValidateTest checks that test is usable as an evaluation target.
func ValidateTest(test *timeseries.Series) error {
	if test == nil || !test.Aligned() {
		return fmt.Errorf("test series: %w", ErrLengthMismatch)
	}
	if test.Len() == 0 {
		return fmt.Errorf("test series: %w", ErrEmpty)
	}
	return nil
}

// Align pairs forecast positionally with the test observations and drops
// every point where the forecast is not finite. Both returned series carry
// the surviving test timestamps.
func Align(test *timeseries.Series, forecast []float64) (actual, predicted *timeseries.Series, err error) {
	if err := ValidateTest(test); err != nil {
		return nil, nil, err
	}
	if len(forecast) != test.Len() {
		return nil, nil, fmt.Errorf("forecast has %d points, test has %d: %w",
			len(forecast), test.Len(), ErrLengthMismatch)
	}

	actual = &timeseries.Series{Name: test.Name, Offset: test.Offset}
	predicted = &timeseries.Series{Name: "forecast", Offset: test.Offset}
	for i, v := range forecast {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		actual.Timestamps = append(actual.Timestamps, test.Timestamps[i])
		actual.Values = append(actual.Values, test.Values[i])
		predicted.Timestamps = append(predicted.Timestamps, test.Timestamps[i])
		predicted.Values = append(predicted.Values, v)
	}
	if actual.Len() == 0 {
		return nil, nil, fmt.Errorf("forecast: %w", ErrEmpty)
	}
	return actual, predicted, nil
}

// Evaluate computes MAE, RMSE and R² of predicted against actual. When
// actual is constant R² is 1 for a perfect prediction and 0 otherwise.
func Evaluate(actual, predicted []float64) (Metrics, error) {
	if len(actual) != len(predicted) {
		return Metrics{}, fmt.Errorf("%d actual vs %d predicted: %w",
			len(actual), len(predicted), ErrLengthMismatch)
	}
	n := float64(len(actual))
	if n == 0 {
		return Metrics{}, ErrEmpty
	}

	m := Metrics{
		MAE:  floats.Distance(actual, predicted, 1) / n,
		RMSE: floats.Distance(actual, predicted, 2) / math.Sqrt(n),
	}

	if len(actual) == 1 || stat.Variance(actual, nil) == 0 {
		if m.RMSE == 0 {
			m.R2 = 1
		}
		return m, nil
	}
	m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	return m, nil
}

// Score aligns forecast with test and evaluates the surviving points.
func Score(test *timeseries.Series, forecast []float64) (actual, predicted *timeseries.Series, m Metrics, err error) {
	actual, predicted, err = Align(test, forecast)
	if err != nil {
		return nil, nil, Metrics{}, err
	}
	m, err = Evaluate(actual.Values, predicted.Values)
	if err != nil {
		return nil, nil, Metrics{}, err
	}
	return actual, predicted, m, nil
}
