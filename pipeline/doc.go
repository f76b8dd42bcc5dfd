// Package pipeline ties the loaders, the grid search and the result sinks
// together for one (model, granularity) pair at a time.
//
// Prepare turns raw survey files into train_data_<g>.csv and
// test_data_<g>.csv; Run loads those files, fills gaps, searches the model
// grid and saves the winning metrics and predictions.
package pipeline
