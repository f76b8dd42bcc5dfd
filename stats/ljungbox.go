package stats

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/fuelcast/timeseries"
)

// LjungBoxResult is the portmanteau statistic Q over Lags autocorrelations
// and its chi-squared p-value with DOF degrees of freedom.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int
}

// LjungBox tests residuals for autocorrelation up to lags. fitdf counts the
// fitted AR and MA terms and is subtracted from the degrees of freedom,
// which never drop below one. lags is capped at len(residuals)-1.
// A small p-value means the model left structure in its residuals.
func LjungBox(residuals *timeseries.Series, lags, fitdf int) (*LjungBoxResult, error) {
	n := residuals.Len()
	if n < 10 || lags < 1 {
		return nil, fmt.Errorf("ljung-box on %d residuals: %w", n, ErrTooShort)
	}
	lags = min(lags, n-1)

	acf := ACF(residuals, lags)
	if acf == nil {
		return nil, fmt.Errorf("ljung-box: %w", ErrDegenerate)
	}

	var sum float64
	for k := 1; k <= lags; k++ {
		sum += acf[k] * acf[k] / float64(n-k)
	}
	q := float64(n*(n+2)) * sum

	dof := max(lags-fitdf, 1)
	return &LjungBoxResult{
		Statistic: q,
		PValue:    distuv.ChiSquared{K: float64(dof)}.Survival(q),
		Lags:      lags,
		DOF:       dof,
	}, nil
}
