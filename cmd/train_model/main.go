package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"fixturecast/config"
	"fixturecast/forecast"
	"fixturecast/logging"
	"fixturecast/pipeline"
	"fixturecast/report"
)

func main() {
	configPath := flag.String("config", "", "config file (built-in defaults when empty)")
	testRatio := flag.Float64("test_ratio", 0.2, "held-out share of labeled rows")
	seed := flag.Int64("seed", 42, "split and forest seed")
	trees := flag.Int("trees", 100, "number of trees")
	maxDepth := flag.Int("max_depth", 0, "max tree depth, 0 for unlimited")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("at least one history file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "test_ratio":
			cfg.Training.TestRatio = *testRatio
		case "seed":
			cfg.Training.Seed = seed
		case "trees":
			cfg.Model.Trees = *trees
		case "max_depth":
			cfg.Model.MaxDepth = *maxDepth
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ingester, err := pipeline.NewIngester(cfg.Ingestion(), logger)
	if err != nil {
		logger.Fatal("invalid input settings", zap.Error(err))
	}
	set, err := ingester.Load(flag.Args())
	if err != nil {
		logger.Fatal("failed to load history", zap.Error(err))
	}

	bundle, err := forecast.NewTrainer(cfg.Trainer(), logger, nil).Train(context.Background(), set)
	if err != nil {
		logger.Fatal("failed to train model", zap.Error(err))
	}

	fmt.Printf("run %s: %d train rows, %d test rows, classes %v\n",
		bundle.ID, bundle.TrainRows, bundle.TestRows, bundle.Codec.Labels())
	if err := report.Metrics(os.Stdout, bundle.Metrics); err != nil {
		log.Fatal(err)
	}
	if err := report.ColumnSpace(os.Stdout, bundle.Space()); err != nil {
		log.Fatal(err)
	}
}
