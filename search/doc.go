// Package search picks ARIMA and SARIMA orders by exhaustive grid search.
//
// Every candidate is fitted on the training series, forecast over the test
// horizon and scored by RMSE against the test observations. The lowest RMSE
// wins, ties going to the earlier candidate, and the winner is refit to
// produce the returned forecast and metrics.
//
//	res, err := search.ARIMA(train, test, timeseries.Monthly,
//	    search.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Candidate(), res.Metrics.RMSE)
//
// A training series that fails the ADF/KPSS check is differenced once before
// the loop. Forecasts are then integrated back from the last training price,
// so Forecast and Actual are always comparable.
//
// Candidates that cannot be fitted are skipped with a warning. When none
// succeeds the fallback order (1,1,1), with (1,1,1,s) for SARIMA, is refit;
// an error from that refit is returned.
package search
