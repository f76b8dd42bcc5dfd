// Package timeseries provides the price series type and the loaders that feed
// the forecasting pipeline.
//
// # Creating a Series
//
//	values := []float64{5.49, 5.52, 5.61, 5.58}
//	series := timeseries.New(values)
//
// # Raw Survey Files
//
// Raw fuel price survey exports are semicolon separated, use day-first dates and
// comma decimals. Load them, average them per period and split them:
//
//	obs, err := timeseries.LoadANP("data/ca-*.csv", nil)
//	monthly := timeseries.Resample(obs, timeseries.Monthly)
//	train, test, err := timeseries.Split(monthly, 0.8)
//	err = timeseries.SaveProcessed("processed", timeseries.Monthly, train, test)
//
// # Processed Files
//
// The processed train/test files carry the columns Data, Preco_Medio and
// Time_Index. LoadProcessed reindexes them onto the granularity grid so gaps
// surface as NaN:
//
//	train, test, err := timeseries.LoadProcessed("processed", timeseries.Weekly)
//
// # Missing Values
//
//	filled, err := timeseries.FillMissing(timeseries.Interpolate, train, test)
//
// # Granularity
//
// A Granularity fixes the resampling period and the SARIMA seasonal period:
// 7 for daily, 52 for weekly and 12 for monthly data.
package timeseries
