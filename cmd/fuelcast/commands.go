package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/sartorproj/fuelcast/config"
	"github.com/sartorproj/fuelcast/pipeline"
	"github.com/sartorproj/fuelcast/results"
	"github.com/sartorproj/fuelcast/scheduler"
	"github.com/sartorproj/fuelcast/stats"
	"github.com/sartorproj/fuelcast/timeseries"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func (a *app) pipelineConfig() pipeline.Config {
	method, _ := a.cfg.FillMethod() // checked by Validate
	return pipeline.Config{
		RawGlob:      a.cfg.Data.RawGlob,
		Product:      a.cfg.Data.Product,
		ProcessedDir: a.cfg.Data.ProcessedDir,
		TrainRatio:   a.cfg.Data.TrainRatio,
		FillMethod:   method,
		Space:        a.cfg.Space(),
	}
}

// openSink builds the configured sinks, fanning out when more than one is set.
func (a *app) openSink() (results.Sink, error) {
	var sinks results.MultiSink
	for _, kind := range a.cfg.Results.Sinks {
		var (
			s   results.Sink
			err error
		)
		switch kind {
		case config.SinkCSV:
			s, err = results.NewCSVSink(a.cfg.Results.MetricsDir, a.cfg.Results.PredictionsDir, a.logger)
		case config.SinkSQLite:
			s, err = results.NewSQLiteSink(a.cfg.Results.SQLitePath, a.logger)
		}
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("open %s sink: %w", kind, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return results.NoopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

// selection parses the -model and -granularity flags, falling back to the
// configured lists.
type selection struct {
	models        string
	granularities string
}

func (s *selection) register(fs *flag.FlagSet) {
	fs.StringVar(&s.models, "model", "", "comma-separated models (arima, sarima) or all")
	fs.StringVar(&s.granularities, "granularity", "", "comma-separated granularities (daily, weekly, monthly) or all")
}

func (s *selection) resolve(cfg *config.Config) ([]string, []timeseries.Granularity, error) {
	models, err := cfg.Models()
	if err != nil {
		return nil, nil, err
	}
	if s.models != "" && s.models != "all" {
		models = nil
		for _, m := range strings.Split(s.models, ",") {
			name, err := config.ParseModel(m)
			if err != nil {
				return nil, nil, err
			}
			models = append(models, name)
		}
	}

	grans, err := cfg.Granularities()
	if err != nil {
		return nil, nil, err
	}
	switch s.granularities {
	case "":
	case "all":
		grans = timeseries.Granularities
	default:
		grans = nil
		for _, v := range strings.Split(s.granularities, ",") {
			g, err := timeseries.ParseGranularity(v)
			if err != nil {
				return nil, nil, err
			}
			grans = append(grans, g)
		}
	}
	return models, grans, nil
}

func (a *app) prepare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
	var sel selection
	sel.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, grans, err := sel.resolve(a.cfg)
	if err != nil {
		return err
	}
	return pipeline.New(a.pipelineConfig(), nil, a.logger).Prepare(ctx, grans...)
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var sel selection
	sel.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	models, grans, err := sel.resolve(a.cfg)
	if err != nil {
		return err
	}

	sink, err := a.openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	out, runErr := pipeline.New(a.pipelineConfig(), sink, a.logger).RunAll(ctx, models, grans)
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tGRANULARITY\tORDER\tD\tMAE\tRMSE\tR2\tAIC\tLB_P\tEVALUATED\tSKIPPED")
	for _, res := range out {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%.4f\t%.4f\t%.2f\t%.3f\t%d\t%d\n",
			res.Model, res.Granularity, res.Candidate(), res.IntegrationOrder(),
			res.Metrics.MAE, res.Metrics.RMSE, res.Metrics.R2,
			res.Diagnostics.AIC, res.Diagnostics.LjungBoxP, res.Evaluated, res.Skipped)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func (a *app) metrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sink, err := a.openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	recs, err := sink.LoadMetrics(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "no metrics recorded yet")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tORDER\tDIFFERENCED\tD\tMAE\tRMSE\tR2\tAIC\tLB_P\tRECORDED")
	for _, r := range recs {
		recorded := "-"
		if !r.RecordedAt.IsZero() {
			recorded = r.RecordedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%.4f\t%.4f\t%.4f\t%.2f\t%.3f\t%s\n",
			r.Key(), r.Order, r.Differenced, r.IntegrationOrder,
			r.MAE, r.RMSE, r.R2, r.AIC, r.LjungBoxP, recorded)
	}
	return w.Flush()
}

func (a *app) stationarity(args []string) error {
	fs := flag.NewFlagSet("stationarity", flag.ContinueOnError)
	granularity := fs.String("granularity", "monthly", "granularity of the training series")
	if err := fs.Parse(args); err != nil {
		return err
	}
	g, err := timeseries.ParseGranularity(*granularity)
	if err != nil {
		return err
	}

	train, _, err := pipeline.New(a.pipelineConfig(), nil, a.logger).Load(g)
	if err != nil {
		return err
	}
	report, err := stats.CheckStationarity(train)
	if err != nil && !errors.Is(err, stats.ErrEmptySeries) {
		return err
	}

	fmt.Fprintf(a.out, "series: %s (%d points)\n", g, report.NObs)
	if report.ADFErr != nil {
		fmt.Fprintf(a.out, "ADF:  %v\n", report.ADFErr)
	} else if report.ADF != nil {
		fmt.Fprintf(a.out, "ADF:  statistic %.4f  p-value %.4f  lags %d\n", report.ADF.Statistic, report.ADF.PValue, report.ADF.Lags)
	}
	if report.KPSSErr != nil {
		fmt.Fprintf(a.out, "KPSS: %v\n", report.KPSSErr)
	} else if report.KPSS != nil {
		fmt.Fprintf(a.out, "KPSS: statistic %.4f  p-value %.4f  lags %d\n", report.KPSS.Statistic, report.KPSS.PValue, report.KPSS.Lags)
	}
	fmt.Fprintf(a.out, "stationary: %t\n", report.Stationary)
	return nil
}

func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var sel selection
	sel.register(fs)
	schedule := fs.String("cron", a.cfg.Schedule.Cron, "six-field cron schedule")
	runNow := fs.Bool("now", a.cfg.Schedule.RunOnStart, "run once before waiting for the schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}
	models, grans, err := sel.resolve(a.cfg)
	if err != nil {
		return err
	}

	sink, err := a.openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	p := pipeline.New(a.pipelineConfig(), sink, a.logger)
	sched := scheduler.New(ctx, p, models, grans, a.logger)
	if err := sched.Register(*schedule); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if *runNow {
		go func() {
			if err := sched.RunNow(); errors.Is(err, scheduler.ErrBusy) {
				a.logger.Info("initial run skipped, a scheduled run is in progress")
			}
		}()
	}
	a.logger.Info("watching", zap.String("cron", *schedule), zap.Time("next", sched.Next()))

	<-ctx.Done()
	a.logger.Info("shutdown signal received, stopping")
	return nil
}
