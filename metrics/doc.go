// Package metrics aligns forecasts with held-out observations and scores them.
//
//	actual, predicted, err := metrics.Align(test, forecast)
//	if errors.Is(err, metrics.ErrLengthMismatch) {
//	    // forecast horizon does not match the test series
//	}
//	m, err := metrics.Evaluate(actual.Values, predicted.Values)
//	fmt.Printf("MAE=%.4f RMSE=%.4f R2=%.4f\n", m.MAE, m.RMSE, m.R2)
package metrics
