// Package sarima implements Seasonal ARIMA (SARIMA) models for time series with seasonality.
//
// SARIMA models extend ARIMA to handle seasonal patterns. A SARIMA(p,d,q)(P,D,Q)[m] model includes:
//   - Non-seasonal components: AR(p), I(d), MA(q)
//   - Seasonal components: SAR(P), SI(D), SMA(Q) at seasonal period m
//
// # Basic Usage
//
// Create and fit a SARIMA model for monthly prices (m=12):
//
//	// SARIMA(1,0,0)(1,1,0)[12]
//	model := sarima.New(1, 0, 0, 1, 1, 0, 12)
//
//	err := model.Fit(series)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Generate forecasts for the next year
//	forecasts, _ := model.Predict(12)
//
// # Common Models
//
// Popular SARIMA configurations:
//
//	// Airline Model: SARIMA(0,1,1)(0,1,1)[12] for monthly data
//	model := sarima.New(0, 1, 1, 0, 1, 1, 12)
//
// # Seasonal Periods
//
// Periods used for fuel prices:
//   - Monthly prices with yearly seasonality: m = 12
//   - Weekly prices with yearly seasonality: m = 52
//   - Daily prices with weekly seasonality: m = 7
//
// # Diagnostics
//
// Summary reports AIC, BIC and a Ljung-Box test whose degrees of freedom
// discount every AR and MA term, seasonal ones included:
//
//	s := model.Summary(10)
//	fmt.Printf("AIC %.2f  Ljung-Box p %.3f\n", s.AIC, s.LjungBox.PValue)
//
// # Enforcement
//
// New keeps every AR and MA coefficient inside (-1, 1). Clearing
// EnforceStationarity or EnforceInvertibility lets the optimizer leave those
// bounds; Fit then returns ErrDiverged if the residuals stop being finite.
//
//	model := sarima.New(1, 1, 1, 1, 1, 1, 12)
//	model.EnforceStationarity = false
//	model.EnforceInvertibility = false
package sarima
