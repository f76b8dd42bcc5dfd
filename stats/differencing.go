package stats

import (
	"github.com/sartorproj/fuelcast/timeseries"
)

// Differencer applies a single first difference to series that fail the
// stationarity check. The differenced series is not tested again.
type Differencer struct {
	// Check decides stationarity. Defaults to IsStationary.
	Check func(*timeseries.Series) bool
}

// Apply returns the first difference of series when it is not stationary,
// or series itself otherwise. The boolean reports whether it differenced.
func (d Differencer) Apply(series *timeseries.Series) (*timeseries.Series, bool) {
	check := d.Check
	if check == nil {
		check = IsStationary
	}
	if check(series) {
		return series, false
	}
	return series.Diff(), true
}

// DifferenceIfNonStationary is Differencer{}.Apply.
func DifferenceIfNonStationary(series *timeseries.Series) (*timeseries.Series, bool) {
	return Differencer{}.Apply(series)
}

// Integrate undoes one first difference: it cumulates diffs starting from
// last, the final value of the undifferenced series.
func Integrate(diffs []float64, last float64) []float64 {
	out := make([]float64, len(diffs))
	level := last
	for i, v := range diffs {
		level += v
		out[i] = level
	}
	return out
}
