package forecast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fixturecast/db"
	"fixturecast/ml"
	"fixturecast/pipeline"
)

// Journal records training runs and predictions. Implemented by db.Journal.
type Journal interface {
	RecordTraining(ctx context.Context, run db.TrainingRun) error
	RecordPredictions(ctx context.Context, runID string, records []db.PredictionRecord) error
}

type TrainingConfig struct {
	OutcomeColumn  string
	ExcludeColumns []string
	TestRatio      float64
	Seed           int64
	MissingNumeric ml.MissingNumericPolicy
	Model          ml.ModelConfig
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		OutcomeColumn:  pipeline.DefaultOutcomeColumn,
		ExcludeColumns: DisplayColumns(),
		TestRatio:      0.2,
		Seed:           42,
		MissingNumeric: ml.MissingZero,
		Model:          ml.ModelConfig{Type: ml.ModelRandomForest},
	}
}

type Trainer struct {
	config  TrainingConfig
	logger  *zap.Logger
	journal Journal
	now     func() time.Time
}

func NewTrainer(config TrainingConfig, logger *zap.Logger, journal Journal) *Trainer {
	defaults := DefaultTrainingConfig()
	if config.OutcomeColumn == "" {
		config.OutcomeColumn = defaults.OutcomeColumn
	}
	// an empty, non-nil list keeps every column
	if config.ExcludeColumns == nil {
		config.ExcludeColumns = defaults.ExcludeColumns
	}
	if config.TestRatio == 0 {
		config.TestRatio = defaults.TestRatio
	}
	if config.MissingNumeric == "" {
		config.MissingNumeric = defaults.MissingNumeric
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		config:  config,
		logger:  logger,
		journal: journal,
		now:     time.Now,
	}
}

// Train fits a fresh bundle on the labeled rows of set and scores it on a
// held-out partition. Rows with a missing outcome are ignored.
func (t *Trainer) Train(ctx context.Context, set *pipeline.RowSet) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcome := t.config.OutcomeColumn
	if set == nil || !set.HasColumn(outcome) {
		return nil, errors.Wrapf(pipeline.ErrSchema, "outcome column %q not found", outcome)
	}

	labeled := ml.LabeledRows(set, outcome)
	codec := ml.NewLabelCodec()
	if err := codec.Fit(labeled.Column(outcome)); err != nil {
		return nil, err
	}
	if codec.Len() < 2 {
		return nil, errors.Wrapf(ml.ErrInsufficientData, "%d distinct outcomes in %d labeled rows", codec.Len(), labeled.Len())
	}

	encoder := &ml.FeatureEncoder{
		OutcomeColumn:  outcome,
		Exclude:        t.config.ExcludeColumns,
		MissingNumeric: t.config.MissingNumeric,
	}
	features, schema, err := encoder.EncodeTraining(labeled)
	if err != nil {
		return nil, errors.Wrap(err, "encode features")
	}
	labels, err := ml.EncodeLabels(labeled, outcome, codec)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := ml.TrainTestSplit(labeled.Len(), t.config.TestRatio, t.config.Seed)
	if err != nil {
		return nil, err
	}

	model, err := ml.NewClassifier(t.config.Model, t.config.Seed)
	if err != nil {
		return nil, err
	}
	if err := model.Train(ml.SelectRows(features, trainIdx), ml.SelectLabels(labels, trainIdx), codec.Len()); err != nil {
		return nil, errors.Wrapf(err, "train %s", model.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	predicted, err := ml.PredictBatch(model, ml.SelectRows(features, testIdx))
	if err != nil {
		return nil, errors.Wrap(err, "score held-out rows")
	}
	metrics, err := ml.Evaluate(ml.SelectLabels(labels, testIdx), predicted, codec)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		ID:        uuid.New(),
		Model:     model,
		Schema:    schema,
		Codec:     codec,
		Metrics:   metrics,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		TrainedAt: t.now().UTC(),
	}

	t.logger.Info("model trained",
		zap.String("run_id", bundle.ID.String()),
		zap.String("model", model.Name()),
		zap.Strings("classes", codec.Labels()),
		zap.Int("features", schema.Space.Len()),
		zap.Int("train_rows", bundle.TrainRows),
		zap.Int("test_rows", bundle.TestRows),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("precision", metrics.Precision),
		zap.Float64("recall", metrics.Recall),
		zap.Float64("f1", metrics.F1),
	)

	if t.journal != nil {
		run := db.TrainingRun{
			ID:        bundle.ID.String(),
			ModelName: model.Name(),
			Accuracy:  metrics.Accuracy,
			Precision: metrics.Precision,
			Recall:    metrics.Recall,
			F1:        metrics.F1,
			Classes:   codec.Len(),
			Features:  schema.Space.Len(),
			TrainRows: bundle.TrainRows,
			TestRows:  bundle.TestRows,
			TrainedAt: bundle.TrainedAt,
		}
		if err := t.journal.RecordTraining(ctx, run); err != nil {
			t.logger.Warn("record training run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	return bundle, nil
}
