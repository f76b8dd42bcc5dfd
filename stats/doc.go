// Package stats provides the stationarity checks and residual diagnostics used
// before and after fitting price models.
//
// # Stationarity
//
// CheckStationarity runs two complementary tests on the finite values of a
// series and combines them:
//
//	// Augmented Dickey-Fuller, H0: unit root (non-stationary)
//	adf, err := stats.ADF(series, 0)
//
//	// KPSS, H0: level stationary; -1 selects the bandwidth automatically
//	kpss, err := stats.KPSS(series, -1)
//
//	report, err := stats.CheckStationarity(series)
//	if errors.Is(err, stats.ErrEmptySeries) {
//	    // nothing finite to test, report.Stationary is false
//	}
//
// A series is stationary only when ADF rejects its null (p < 0.05) and KPSS
// does not (p > 0.05). A test that fails to run votes non-stationary.
//
// # Differencing
//
// Differencer takes one first difference of a non-stationary series. It
// never recurses:
//
//	train, differenced := stats.DifferenceIfNonStationary(train)
//	// ... forecast on the differenced scale ...
//	prices := stats.Integrate(forecast, lastPrice)
//
// # Diagnostics
//
//	acf := stats.ACF(residuals, 20)
//	lb, err := stats.LjungBox(residuals, 10, p+q)
package stats
