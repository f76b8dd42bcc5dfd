// Package results persists the outcome of each grid search.
//
// A Sink keeps at most one metrics record per (model, granularity) key, for
// example "SARIMA_weekly", and replaces the stored predictions of that key on
// every save. CSVSink writes a consolidated metrics file plus one
// predictions file per key; SQLiteSink keeps the same data in two tables.
//
//	sink, err := results.NewSQLiteSink("data/fuelcast.db", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sink.Close()
//
//	rec, preds := results.FromResult(results.NewRunID(), res, time.Now())
//	err = sink.SaveMetrics(ctx, rec)
package results
