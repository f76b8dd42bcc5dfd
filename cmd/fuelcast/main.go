// Command fuelcast prepares fuel price series, searches ARIMA and SARIMA
// orders and records the winning forecasts.
//
// Usage:
//
//	fuelcast [-config path] <command> [flags]
//
// Commands:
//
//	prepare       build train/test files from the raw survey CSVs
//	run           search models and save metrics and predictions
//	metrics       print the stored metrics table
//	stationarity  run the ADF and KPSS tests on a training series
//	watch         re-run the search on the configured cron schedule
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sartorproj/fuelcast/config"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fuelcast:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fuelcast", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (default $FUELCAST_CONFIG or "+config.DefaultPath+")")
	envFile := fs.String("env", ".env", "dotenv file loaded before the config")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: fuelcast [-config path] prepare|run|metrics|stationarity|watch [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app := &app{cfg: cfg, logger: logger, out: out}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "prepare":
		return app.prepare(ctx, cmdArgs)
	case "run":
		return app.run(ctx, cmdArgs)
	case "metrics":
		return app.metrics(ctx, cmdArgs)
	case "stationarity":
		return app.stationarity(cmdArgs)
	case "watch":
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return app.watch(ctx, cmdArgs)
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// newLogger builds a production or development zap logger at the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zcfg.Level = level
	return zcfg.Build()
}
