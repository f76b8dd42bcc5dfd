// Package arima fits non-seasonal ARIMA(p,d,q) models to price series by
// conditional sum of squares.
//
// The search package fits one Model per grid candidate, forecasts the test
// horizon and keeps the order with the lowest RMSE:
//
//	model := arima.New(1, 1, 0)
//	if err := model.Fit(train); err != nil {
//	    return err
//	}
//	forecast, err := model.Predict(test.Len())
//
// Forecasts are integrated back through the model's own d differences, so
// they are on the scale of the series passed to Fit.
//
// Summary reports AIC, BIC and a Ljung-Box test on the residuals. The search
// records it for the refitted winner; it plays no part in choosing the
// order.
//
// Fit rejects series holding NaN or ±Inf and reports ErrDiverged when the
// estimation produces non-finite residuals.
package arima
