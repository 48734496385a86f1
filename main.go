package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fixturecast/config"
	"fixturecast/db"
	"fixturecast/forecast"
	"fixturecast/logging"
	"fixturecast/pipeline"
	"fixturecast/report"
)

type app struct {
	paths     []string
	format    report.Format
	out       io.Writer
	ingester  *pipeline.Ingester
	trainer   *forecast.Trainer
	predictor *forecast.Predictor
	slot      forecast.Slot
	logger    *zap.Logger
}

func main() {
	configPath := flag.String("config", "", "config file (built-in defaults when empty)")
	watch := flag.Bool("watch", false, "retrain and predict again whenever an input file changes")
	format := flag.String("format", "table", "output format: table or csv")
	history := flag.Int("history", 0, "print the last n journaled runs with their predictions and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] history.csv...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && *history <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	outFormat, err := report.ParseFormat(*format)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// 2. Open the run journal when configured
	var journal forecast.Journal
	var store *db.Journal
	if cfg.Journal.Path != "" {
		store, err = db.Open(cfg.Journal.Path, *cfg.Journal.WAL)
		if err != nil {
			logger.Fatal("open journal failed", zap.String("path", cfg.Journal.Path), zap.Error(err))
		}
		defer store.Close()
		journal = store
		logger.Info("journal opened", zap.String("path", cfg.Journal.Path))
	}

	if *history > 0 {
		if store == nil {
			logger.Fatal("history needs journal.path in the config")
		}
		if err := printHistory(context.Background(), store, *history, os.Stdout); err != nil {
			logger.Fatal("read journal failed", zap.Error(err))
		}
		return
	}

	ingester, err := pipeline.NewIngester(cfg.Ingestion(), logger)
	if err != nil {
		logger.Fatal("invalid input settings", zap.Error(err))
	}
	a := &app{
		paths:     flag.Args(),
		format:    outFormat,
		out:       os.Stdout,
		ingester:  ingester,
		trainer:   forecast.NewTrainer(cfg.Trainer(), logger, journal),
		predictor: forecast.NewPredictor(cfg.Predictor(), logger, journal),
		logger:    logger,
	}

	// 3. Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	if err := a.refresh(ctx); err != nil {
		if !*watch {
			logger.Error("prediction failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Error("prediction failed, waiting for input changes", zap.Error(err))
	}
	if !*watch {
		return
	}

	// 4. Watch inputs
	watcher, err := pipeline.NewWatcher(a.paths, 0, logger)
	if err != nil {
		logger.Fatal("watch inputs failed", zap.Error(err))
	}
	defer watcher.Close()
	logger.Info("watching inputs", zap.Strings("paths", a.paths))

	err = watcher.Run(ctx, func() {
		if err := a.refresh(ctx); err != nil {
			logger.Error("refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Error("watcher stopped", zap.Error(err))
	}
}

// refresh reloads every input, retrains and prints predictions for the
// fixtures. When training fails the previously installed bundle is still used.
func (a *app) refresh(ctx context.Context) error {
	set, err := a.ingester.Load(a.paths)
	if err != nil {
		return err
	}

	bundle, err := a.trainer.Train(ctx, set)
	if err != nil {
		if a.slot.Current() == nil {
			return errors.Wrap(err, "train")
		}
		a.logger.Warn("training failed, keeping previous model", zap.Error(err))
	}
	a.slot.Install(bundle)
	current := a.slot.Current()

	if err := report.Metrics(a.out, current.Metrics); err != nil {
		return err
	}
	predictions, err := a.predictor.PredictAll(ctx, set, current)
	if err != nil {
		return err
	}
	return report.Predictions(a.out, predictions, a.format)
}

func printHistory(ctx context.Context, store *db.Journal, limit int, out io.Writer) error {
	runs, err := store.RecentTrainingRuns(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "recent runs")
	}
	predictions := make(map[string][]db.PredictionRecord, len(runs))
	for _, run := range runs {
		records, err := store.PredictionsForRun(ctx, run.ID)
		if err != nil {
			return errors.Wrapf(err, "predictions for %s", run.ID)
		}
		predictions[run.ID] = records
	}
	return report.History(out, runs, predictions)
}
