package config

import (
	"io"
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"fixturecast/forecast"
	"fixturecast/logging"
	"fixturecast/ml"
	"fixturecast/pipeline"
)

type Config struct {
	Input    InputConfig    `yaml:"input"`
	Training TrainingConfig `yaml:"training"`
	Model    ml.ModelConfig `yaml:"model"`
	Predict  PredictConfig  `yaml:"predict"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      logging.Config `yaml:"log"`
}

type InputConfig struct {
	Delimiter      string   `yaml:"delimiter"`
	Encoding       string   `yaml:"encoding"`
	MissingMarkers []string `yaml:"missing_markers"`
	DecimalComma   bool     `yaml:"decimal_comma"`
	CacheSize      int      `yaml:"cache_size"`
}

type TrainingConfig struct {
	OutcomeColumn  string   `yaml:"outcome_column"`
	ExcludeColumns []string `yaml:"exclude_columns"`
	TestRatio      float64  `yaml:"test_ratio"`
	Seed           *int64   `yaml:"seed"`
	MissingNumeric string   `yaml:"missing_numeric"`
}

type PredictConfig struct {
	UnknownCategory string `yaml:"unknown_category"`
	Formation       string `yaml:"formation"`
}

// JournalConfig enables the sqlite run journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
	WAL  *bool  `yaml:"wal"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a yaml file and fills unset fields with defaults. An empty path
// yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer file.Close()

	var c Config
	if err := yaml.NewDecoder(file).Decode(&c); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Input.Delimiter == "" {
		c.Input.Delimiter = ";"
	}
	if c.Input.Encoding == "" {
		c.Input.Encoding = "utf-8"
	}
	if c.Input.MissingMarkers == nil {
		c.Input.MissingMarkers = []string{"", "NA", "NaN"}
	}
	if c.Input.CacheSize == 0 {
		c.Input.CacheSize = 32
	}

	if c.Training.OutcomeColumn == "" {
		c.Training.OutcomeColumn = pipeline.DefaultOutcomeColumn
	}
	if c.Training.ExcludeColumns == nil {
		c.Training.ExcludeColumns = forecast.DisplayColumns()
	}
	if c.Training.TestRatio == 0 {
		c.Training.TestRatio = 0.2
	}
	if c.Training.Seed == nil {
		seed := int64(42)
		c.Training.Seed = &seed
	}
	if c.Training.MissingNumeric == "" {
		c.Training.MissingNumeric = string(ml.MissingZero)
	}

	if c.Model.Type == "" {
		c.Model.Type = ml.ModelRandomForest
	}
	if c.Model.Trees == 0 {
		c.Model.Trees = 100
	}
	if c.Model.MinSamplesSplit == 0 {
		c.Model.MinSamplesSplit = 2
	}
	if c.Model.Bootstrap == nil {
		on := true
		c.Model.Bootstrap = &on
	}

	if c.Predict.UnknownCategory == "" {
		c.Predict.UnknownCategory = string(ml.UnknownIgnore)
	}
	if c.Predict.Formation == "" {
		c.Predict.Formation = forecast.DefaultFormation
	}

	if c.Journal.WAL == nil {
		on := true
		c.Journal.WAL = &on
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
}

func (c *Config) Validate() error {
	if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		return errors.Errorf("input.delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return errors.Errorf("training.test_ratio must be in (0, 1), got %v", c.Training.TestRatio)
	}
	if _, err := ml.ParseMissingNumericPolicy(c.Training.MissingNumeric); err != nil {
		return err
	}
	if _, err := ml.ParseUnknownCategoryPolicy(c.Predict.UnknownCategory); err != nil {
		return err
	}
	switch c.Model.Type {
	case ml.ModelRandomForest, ml.ModelDecisionTree:
	default:
		return errors.Errorf("unsupported model type %q", c.Model.Type)
	}
	if c.Model.Trees < 0 || c.Model.MaxDepth < 0 || c.Model.MaxFeatures < 0 {
		return errors.New("model sizes must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) Ingestion() pipeline.IngestionConfig {
	delimiter, _ := utf8.DecodeRuneInString(c.Input.Delimiter)
	return pipeline.IngestionConfig{
		Delimiter:      delimiter,
		Encoding:       c.Input.Encoding,
		OutcomeColumn:  c.Training.OutcomeColumn,
		MissingMarkers: c.Input.MissingMarkers,
		DecimalComma:   c.Input.DecimalComma,
		CacheSize:      c.Input.CacheSize,
	}
}

func (c *Config) Trainer() forecast.TrainingConfig {
	policy, _ := ml.ParseMissingNumericPolicy(c.Training.MissingNumeric)
	return forecast.TrainingConfig{
		OutcomeColumn:  c.Training.OutcomeColumn,
		ExcludeColumns: c.Training.ExcludeColumns,
		TestRatio:      c.Training.TestRatio,
		Seed:           *c.Training.Seed,
		MissingNumeric: policy,
		Model:          c.Model,
	}
}

func (c *Config) Predictor() forecast.PredictorConfig {
	policy, _ := ml.ParseUnknownCategoryPolicy(c.Predict.UnknownCategory)
	return forecast.PredictorConfig{
		UnknownCategory: policy,
		Formation:       c.Predict.Formation,
	}
}
