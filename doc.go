// Package fuelcast forecasts retail gasoline prices with ARIMA and SARIMA
// models chosen by an exhaustive grid search.
//
// Raw survey exports are averaged into daily, weekly or monthly series and
// split 80/20 into train and test files. For each (model, granularity) pair
// the training series is checked for stationarity with ADF and KPSS,
// differenced once when needed, and every order of the grid is fitted and
// scored by test-set RMSE. The winner's MAE, RMSE and R² are stored next to
// its forecast.
//
// # Quick Start
//
//	train, test, _ := timeseries.LoadProcessed("data/processed", timeseries.Monthly)
//	res, err := search.SARIMA(train, test, timeseries.Monthly)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Candidate(), res.Metrics.RMSE)
//
// # Packages
//
//   - timeseries: series type, granularities, gap filling, resampling and CSV files
//   - stats: ADF and KPSS tests, the stationarity verdict, differencing, ACF, Ljung-Box
//   - metrics: forecast alignment and MAE/RMSE/R²
//   - arima: non-seasonal ARIMA models
//   - sarima: seasonal ARIMA models
//   - search: grid search over ARIMA and SARIMA orders
//   - results: CSV and SQLite sinks for metrics and predictions
//   - config, pipeline, scheduler: the fuelcast command's plumbing
//
// # References
//
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
//   - MacKinnon, J.G. (2010). Critical Values for Cointegration Tests
package fuelcast
